// Package version reports the build of the fieldlink binaries.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set with -ldflags at release time:
//
//	go build -ldflags="-X github.com/muurk/fieldlink/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/fieldlink/internal/version.Commit=abc1234"
//
// Local builds fall back to the VCS stamp in the build info.
var (
	// Version is the release, or dev-<date> for local builds
	Version = ""
	// Commit is the short revision, suffixed -dirty for modified trees
	Commit = ""
)

const shortRevision = 7

func init() {
	info, _ := debug.ReadBuildInfo()
	Version, Commit = resolve(Version, Commit, info, time.Now())
}

// resolve fills whichever of version and commit the linker left empty
func resolve(version, commit string, info *debug.BuildInfo, now time.Time) (string, string) {
	var revision, stamp string
	dirty := false
	if info != nil {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
			case "vcs.modified":
				dirty = s.Value == "true"
			case "vcs.time":
				stamp = s.Value
			}
		}
	}

	if commit == "" && revision != "" {
		commit = revision[:min(len(revision), shortRevision)]
		if dirty {
			commit += "-dirty"
		}
	}
	if commit == "" {
		commit = "unknown"
	}

	if version == "" {
		built := now
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			built = t
		}
		version = "dev-" + built.Format("20060102")
	}
	return version, commit
}

// Full returns the version and commit for the version commands
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
