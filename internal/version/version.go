// Package version exposes build-time version metadata.
// The variables are overridden at build time via -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the binary (e.g. "0.3.1").
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable one-line version description.
func Info() string {
	return fmt.Sprintf("cellgate %s (commit %s, built %s)", Version, Commit, BuildDate)
}

// Map returns version metadata as a map for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
	}
}
