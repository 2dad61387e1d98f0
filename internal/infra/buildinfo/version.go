package buildinfo

import "runtime"

// Build-time variables (set via ldflags).
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Name is the program name used in logs and the websocket user agent.
const Name = "aggregator"

// Info contains build information.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built at " + BuildTime
}

// UserAgent returns "aggregator/<version>".
func UserAgent() string {
	return Name + "/" + Version
}

// LogAttrs returns build information as slog key/value pairs.
func LogAttrs() []any {
	info := Get()
	return []any{
		"version", info.Version,
		"commit", info.Commit,
		"build_time", info.BuildTime,
		"go_version", info.GoVersion,
	}
}
