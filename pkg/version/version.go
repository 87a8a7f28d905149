// Package version reports which dashgate build is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/rzbill/dashgate/pkg/version.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"buildTime" yaml:"buildTime"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	OS        string `json:"os" yaml:"os"`
	Arch      string `json:"arch" yaml:"arch"`
}

// Current returns the build information. Values missing from ldflags are
// filled from the module build info when `go install` produced the binary.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		b.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.BuildTime == "unknown" {
				b.BuildTime = s.Value
			}
		}
	}
	return b
}

// ShortCommit is the first eight characters of the commit.
func (b Build) ShortCommit() string {
	if len(b.Commit) > 8 {
		return b.Commit[:8]
	}
	return b.Commit
}

// String renders the one-line banner printed by `dashgate version`.
func (b Build) String() string {
	return fmt.Sprintf("Dashgate %s (%s) - %s %s/%s", b.Version, b.ShortCommit(), b.BuildTime, b.OS, b.Arch)
}

// Info is Current().String().
func Info() string {
	return Current().String()
}

// UserAgent is the User-Agent header sent on every outbound request.
func UserAgent() string {
	return "Dashgate/" + Current().Version
}
