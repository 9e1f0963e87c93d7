package version

import (
	"cmp"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
)

// Version information for the krait CLI and runtime.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the runtime.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colored renders Version with each semantic component in its own colour.
// Pre-release and build suffixes are left uncoloured.
func Colored() string {
	v := strings.TrimSpace(Version)
	core, suffix := v, ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core, suffix = v[:i], v[i:]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return v
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + suffix
}

// Full is the one-line version string shown by the CLI and sys.version.
func Full() string {
	s := "krait " + strings.TrimSpace(Version)
	if c := strings.TrimSpace(GitCommit); c != "" {
		if len(c) > 12 {
			c = c[:12]
		}
		s += " (" + c + ")"
	}
	return s
}

// BuildInfo is the build metadata reported by `krait version`.
type BuildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Commit    string `json:"git_commit,omitempty"`
	Message   string `json:"git_message,omitempty"`
	Date      string `json:"build_date,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// Info merges the -ldflags variables with the VCS stamp the go tool embeds.
// The ldflags values win when both are present.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   strings.TrimSpace(Version),
		GoVersion: runtime.Version(),
		Commit:    strings.TrimSpace(GitCommit),
		Message:   strings.TrimSpace(GitMessage),
		Date:      strings.TrimSpace(BuildDate),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = cmp.Or(info.Commit, s.Value)
		case "vcs.time":
			info.Date = cmp.Or(info.Date, s.Value)
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}
