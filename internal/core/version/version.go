// Package version carries the build stamp reported on /status and in startup logs
package version

// BuildInfo holds version information about the binary
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information
// Set via -ldflags "-X 'modwatch/internal/core/version.version=v0.1.0'
// -X 'modwatch/internal/core/version.commit=abcd' -X 'modwatch/internal/core/version.date=2026-10-01'"
func Info() BuildInfo {
	return BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// UserAgent formats the origin user agent for this build
func UserAgent() string {
	return "modwatch/" + version + " (comment removal recheck)"
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
