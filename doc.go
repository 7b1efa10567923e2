// Package iocfixture provides test fixtures that run a simulated EPICS IOC
// for a group of tests and bind client devices to it.
//
// The core is the IOC lifecycle: start the IOC with the database templates
// on its command line, block until it prints
// "iocRun: All initialization complete", and on teardown purge the client
// channel caches before telling the IOC to exit:
//
//	launcher, err := iocfixture.NewLauncher()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	proc, err := launcher.Launch(ctx,
//	    iocfixture.Template{Path: "db/motor.db", Macros: "P=SIM:,M=M1"},
//	)
//	if err != nil {
//	    log.Fatal(err) // wraps ErrTimeout or ErrStreamClosed
//	}
//	defer proc.Exit()
//
// # Fixtures
//
// ProcessFixture wraps the launcher with setup and teardown. DeviceFixture
// constructs a device for a record prefix and waits for its Connect.
// NewDeviceAndProcessFixtures returns both, with the device declared as
// depending on the IOC:
//
//	ioc, motor := iocfixture.NewDeviceAndProcessFixtures(NewMotor, "SIM:",
//	    []iocfixture.Template{{Path: "db/motor.db", Macros: "P=SIM:"}},
//	    iocfixture.WithDeviceName("motor"),
//	)
//
// # Scopes
//
// A Scope resolves fixtures by name, dependencies first, and tears them down
// in reverse order. Module-scoped fixtures live in TestMain or in a testify
// suite:
//
//	func (s *MotorSuite) SetupSuite() {
//	    s.scope = iocfixture.NewScope()
//	    s.Require().NoError(s.scope.Register(ioc, motor))
//	}
//
//	func (s *MotorSuite) TearDownSuite() {
//	    s.Require().NoError(s.scope.Close())
//	}
//
// # Environment
//
// IOCFIXTURE_PYTHON selects the interpreter for the default command,
// IOCFIXTURE_COMMAND replaces the command entirely (shell quoting applies)
// and IOCFIXTURE_DEBUG turns on console logging.
package iocfixture
