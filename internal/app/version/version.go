package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at build time with -ldflags "-X vpnrotator/internal/app/version.buildVersion=...".
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

type Info struct {
	BuildVersion string `json:"buildVersion"`
	BuiltAt      string `json:"builtAt"`
	Commit       string `json:"commit,omitempty"`
	GoVersion    string `json:"goVersion"`
}

func Get() Info {
	info := Info{
		BuildVersion: buildVersion,
		BuiltAt:      builtAt,
		GoVersion:    runtime.Version(),
	}

	if build, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range build.Settings {
			if setting.Key == "vcs.revision" {
				info.Commit = setting.Value
			}
		}
	}

	return info
}
