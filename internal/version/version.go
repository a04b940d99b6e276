// Package version contains build version information.
package version

// Build metadata, overridden at build time via -ldflags "-X".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)
