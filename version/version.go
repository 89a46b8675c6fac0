// Package version reports the build version of feed-rss.
package version

import (
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags "-X github.com/richardwooding/feed-rss/version.Version=...".
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

const shortCommit = 7

// Info is the resolved build metadata.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
}

// Get returns the build metadata, filling gaps from the VCS stamp embedded
// by the go toolchain.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fromBuildInfo(info, bi)
	}
	info.Version = strings.TrimPrefix(info.Version, "v")
	return info
}

func fromBuildInfo(info Info, bi *debug.BuildInfo) Info {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.GitCommit == "":
			info.GitCommit = s.Value[:min(len(s.Value), shortCommit)]
		case s.Key == "vcs.time" && info.BuildDate == "":
			info.BuildDate = s.Value
		}
	}
	return info
}

// GetVersion returns just the version string
func GetVersion() string {
	return Get().Version
}

// GetFullVersion returns the version with the short commit appended when known.
func GetFullVersion() string {
	info := Get()
	if info.GitCommit == "" {
		return info.Version
	}
	return info.Version + "-" + info.GitCommit
}

// Generator returns the value written to the <generator> element of feeds
// that do not set one.
func Generator() string {
	return "feed-rss " + GetVersion()
}
