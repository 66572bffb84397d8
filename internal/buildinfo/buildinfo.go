// Package buildinfo holds the library version and build date.
package buildinfo

import "fmt"

const (
	Major = 1
	Minor = 0
	Patch = 0
)

// BuildDate is set at link time:
//
//	go build -ldflags "-X github.com/cwbudde/algo-vibrato/internal/buildinfo.BuildDate=2026-10-17"
var BuildDate = "unknown"

// Version returns "major.minor.patch".
func Version() string {
	return fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
}

// String returns the version followed by the build date.
func String() string {
	return fmt.Sprintf("%s (built %s)", Version(), BuildDate)
}
