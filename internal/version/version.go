// Package version carries build metadata stamped in through -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata on one line for `losscape version`.
func String() string {
	return fmt.Sprintf("losscape %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
