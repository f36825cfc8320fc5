// Package version holds build information injected with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/memmux/internal/version.Version=1.2.3 \
//	                   -X github.com/jmylchreest/memmux/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/memmux/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables.
var (
	// Version is a SemVer string; snapshots look like "1.2.3-SNAPSHOT.abc1234".
	Version = "dev"
	Commit  = "unknown"
	// Date is the build time in RFC3339.
	Date = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "memmux"

// Info is the structured build information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// GetInfo returns the build information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func shortCommit() (string, bool) {
	if Commit == "unknown" || len(Commit) < 8 {
		return "", false
	}
	return Commit[:8], true
}

// String returns a one-line description for `memmux version`.
func String() string {
	info := GetInfo()
	if c, ok := shortCommit(); ok {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, c, info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns the --version output.
func Short() string {
	if c, ok := shortCommit(); ok {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, Version, c)
	}
	return ApplicationName + " " + Version
}

// UserAgent returns the User-Agent used when fetching remote inputs.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-SNAPSHOT")
}
