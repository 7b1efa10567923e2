package iocfixture

// PairOption configures NewDeviceAndProcessFixtures
type PairOption func(*pairConfig)

type pairConfig struct {
	deviceName  string
	processName string
	fixtureOpts []FixtureOption
	deviceOpts  []DeviceOption
}

// WithDeviceName names the device fixture
func WithDeviceName(name string) PairOption {
	return func(c *pairConfig) {
		c.deviceName = name
	}
}

// WithProcessName names the IOC fixture
func WithProcessName(name string) PairOption {
	return func(c *pairConfig) {
		c.processName = name
	}
}

// WithProcessOptions passes options through to the IOC fixture
func WithProcessOptions(opts ...FixtureOption) PairOption {
	return func(c *pairConfig) {
		c.fixtureOpts = append(c.fixtureOpts, opts...)
	}
}

// WithDeviceOptions passes options through to the device fixture
func WithDeviceOptions(opts ...DeviceOption) PairOption {
	return func(c *pairConfig) {
		c.deviceOpts = append(c.deviceOpts, opts...)
	}
}

// NewDeviceAndProcessFixtures returns a matched IOC fixture and device
// fixture. The device fixture declares a dependency on the IOC fixture by
// name; nothing else ties them together, so register both in a Scope (or
// drive them from a suite) and let it order them.
//
// Use one IOC per protocol or device family: it is shared by every test in
// the scope, so add a record for each value a test modifies.
func NewDeviceAndProcessFixtures[D Device](factory DeviceFactory[D], prefix string, templates []Template, opts ...PairOption) (*ProcessFixture, *DeviceFixture[D]) {
	var cfg pairConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ioc := NewProcessFixture(cfg.processName, templates, cfg.fixtureOpts...)
	deviceOpts := append([]DeviceOption{DependsOn(ioc.Name())}, cfg.deviceOpts...)
	device := NewDeviceFixture(cfg.deviceName, factory, prefix, deviceOpts...)

	return ioc, device
}
