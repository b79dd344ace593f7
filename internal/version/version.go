// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the release of the solver tools
	Version = "dev"
	// GitSHA is the commit the binaries were built from
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and run logs.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
