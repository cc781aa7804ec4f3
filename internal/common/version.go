package common

import (
	"fmt"
	"runtime"
)

// Version information (set via -ldflags during build)
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s, %s/%s)", Version, Build, GitCommit, runtime.GOOS, runtime.GOARCH)
}

// UserAgent returns the HTTP user agent for outbound requests
func UserAgent() string {
	return "dailyscan/" + Version
}
