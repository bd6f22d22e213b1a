// Package version holds build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/mj1618/hidbridge/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String formats the build metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
