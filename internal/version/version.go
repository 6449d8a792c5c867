// Package version holds build-time version information injected via ldflags.
package version

// Set at build time, e.g. -ldflags "-X github.com/hazz-dev/sitecheck/internal/version.Version=v0.1.0".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
