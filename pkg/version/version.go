// Package version provides build information for pulsewatch.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build information, set with -ldflags at build time.
//
//nolint:gochecknoglobals // build-time injection
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info represents version information.
type Info struct {
	Version   string `json:"version"   yaml:"version"`
	GitCommit string `json:"gitCommit" yaml:"git_commit"`
	BuildDate string `json:"buildDate" yaml:"build_date"`
	GoVersion string `json:"goVersion" yaml:"go_version"`
	Platform  string `json:"platform"  yaml:"platform"`
}

// Get returns the version information. A missing commit is filled from the
// VCS stamp the Go toolchain embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if info.GitCommit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.GitCommit = s.Value
				}
			}
		}
	}
	return info
}

// String returns a one-line description.
func (i Info) String() string {
	return fmt.Sprintf("pulsewatch %s (commit: %s, built: %s, go: %s, platform: %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}
