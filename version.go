package iocfixture

// Version is the current version of the go-iocfixture library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// ReadyMarker is the readiness line the launcher expects
	ReadyMarker string
	// IOCModule is the python module run by the default command
	IOCModule string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:     Version,
		ReadyMarker: DefaultReadyMarker,
		IOCModule:   DefaultIOCModule,
	}
}
