// Package buildinfo holds version metadata stamped in at link time, e.g.
//
//	go build -ldflags "-X github.com/cleared-dev/billbox/internal/buildinfo.Version=v0.3.0" ./cmd/billbox
package buildinfo

import "fmt"

var (
	// Version will be set via ldflags during build.
	Version = "dev"
	// Commit will be set via ldflags during build.
	Commit = "none"
	// Date will be set via ldflags during build.
	Date = "unknown"
)

// String formats the build metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
