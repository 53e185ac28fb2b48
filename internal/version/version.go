// Package version provides build information for the now-playing daemon.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set at build time using -ldflags.
var (
	// Name is the application name reported to Jellyfin and shown in the banner.
	Name = "Stellar Now Playing"

	// Version is the semantic version.
	Version = "0.3.0"

	// GitCommit is the git commit hash.
	GitCommit = ""
)

// Info contains version information.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit,omitempty"`
	GoVersion string `json:"goVersion,omitempty"`
}

// GetInfo returns the current version information.
func GetInfo() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		GitCommit: GitCommit,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
	}
	return info
}

// String returns a formatted version string.
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	return s
}

// UserAgent returns the User-Agent header value for outgoing HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("StellarNowPlaying/%s", Version)
}
