package pkg

// version is overridden at build time with -ldflags "-X freelaw.courtlistener.cl-update-index/pkg.version=..."
var version = "1.0.0"

// GetVersion returns the build version of the cl-update-index tools
func GetVersion() string {
	return version
}
