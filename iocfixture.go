package iocfixture

import (
	"io/fs"
	"time"
)

// IOC launch and readiness constants
const (
	// DefaultReadyMarker is the line content the IOC prints once iocInit has finished.
	// Any change to this literal breaks readiness detection.
	DefaultReadyMarker = "iocRun: All initialization complete"

	// DefaultReadyTimeout bounds the readiness wait
	DefaultReadyTimeout = 10 * time.Second

	// DefaultExitGrace is how long an IOC may take to exit after the exit directive
	// before its process group is killed
	DefaultExitGrace = 5 * time.Second

	// DefaultPython is the interpreter used when IOCFIXTURE_PYTHON is unset
	DefaultPython = "python3"

	// DefaultIOCModule is the python module that runs a softIoc
	DefaultIOCModule = "epicscorelibs.ioc"

	// ExitDirective is written to the IOC shell on stdin to shut it down
	ExitDirective = "exit()"

	// MacroFlag precedes a macro substitution string on the IOC command line
	MacroFlag = "-m"

	// DatabaseFlag precedes a database (template) path on the IOC command line
	DatabaseFlag = "-d"

	// DefaultWatchGrace is the grace period given to the template watcher on stop
	DefaultWatchGrace = 100 * time.Millisecond
)

// Fixture naming defaults
const (
	// DefaultProcessFixtureName is the name of a process fixture created without one
	DefaultProcessFixtureName = "ioc"

	// DefaultDeviceFixtureName is the name of a device fixture created without one
	DefaultDeviceFixtureName = "device"

	// TranscriptSuffix is appended to the fixture name for transcript files
	TranscriptSuffix = ".log"
)

// Environment overrides
const (
	// EnvPython selects the interpreter for the default IOC command
	EnvPython = "IOCFIXTURE_PYTHON"

	// EnvCommand replaces the whole IOC command; the value is split with shell quoting rules
	EnvCommand = "IOCFIXTURE_COMMAND"

	// EnvDebug enables console logging on stderr when no logger is configured
	EnvDebug = "IOCFIXTURE_DEBUG"
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode fs.FileMode = 0o755

	// FileMode is the default mode for created files
	FileMode fs.FileMode = 0o644
)

// Operation identifies the fixture step an error came from
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpLaunch starts the IOC process
	OpLaunch
	// OpReady waits for the readiness marker
	OpReady
	// OpCommunicate sends input to the IOC and drains its output
	OpCommunicate
	// OpExit sends the exit directive
	OpExit
	// OpPurge purges client channel caches
	OpPurge
	// OpSetup sets up a scoped fixture
	OpSetup
	// OpTeardown tears down a scoped fixture
	OpTeardown
	// OpManifest loads a template manifest
	OpManifest
	// OpWatch watches template sources
	OpWatch
	// OpTranscript writes the IOC transcript
	OpTranscript
)

// Operation string constants
const (
	opUnknownStr     = "unknown"
	opLaunchStr      = "launch"
	opReadyStr       = "ready"
	opCommunicateStr = "communicate"
	opExitStr        = "exit"
	opPurgeStr       = "purge"
	opSetupStr       = "setup"
	opTeardownStr    = "teardown"
	opManifestStr    = "manifest"
	opWatchStr       = "watch"
	opTranscriptStr  = "transcript"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpLaunch:
		return opLaunchStr
	case OpReady:
		return opReadyStr
	case OpCommunicate:
		return opCommunicateStr
	case OpExit:
		return opExitStr
	case OpPurge:
		return opPurgeStr
	case OpSetup:
		return opSetupStr
	case OpTeardown:
		return opTeardownStr
	case OpManifest:
		return opManifestStr
	case OpWatch:
		return opWatchStr
	case OpTranscript:
		return opTranscriptStr
	default:
		return opUnknownStr
	}
}
