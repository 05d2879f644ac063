// Package version carries build information stamped in via ldflags:
//
//	go build -ldflags "-X github.com/teranos/catalogix/version.Version=v1.2.0 \
//	  -X github.com/teranos/catalogix/version.CommitHash=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// Build information. These variables are set at build time via ldflags.
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash    string `json:"commit_hash"`
	BuildTime     string `json:"build_time"`
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// Get returns the current version information. schemaVersion is the models
// schema the generated SQL targets.
func Get(schemaVersion string) Info {
	return Info{
		CommitHash:    CommitHash,
		BuildTime:     BuildTime,
		Version:       Version,
		SchemaVersion: schemaVersion,
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	return fmt.Sprintf("catalogix %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// Short returns a short version string with just the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
