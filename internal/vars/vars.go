// Package vars holds build metadata injected with -ldflags "-X".
package vars

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "craftping"

	// Version is the git tag of the build, "dev" for local builds
	Version = "dev"

	// Commit is the full or short git SHA
	Commit = "unknown"

	// URL of the repository
	URL = "https://github.com/woozymasta/craftping"

	// Revision and BuildTime arrive as strings from the linker
	_revision  string
	_buildTime string
)

// BuildInfo is the build metadata reported by the health endpoint and the CLI.
type BuildInfo struct {
	BuildTime time.Time `json:"build_time,omitzero"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	URL       string    `json:"url,omitempty"`
	License   string    `json:"license,omitempty"`
	Revision  int       `json:"revision,omitempty"`
}

// Info returns the build metadata of the running binary.
func Info() BuildInfo {
	info := BuildInfo{
		Name:    Name,
		Version: Version,
		Commit:  shortCommit(Commit),
		URL:     URL,
		License: License,
	}

	if n, err := strconv.Atoi(_revision); err == nil {
		info.Revision = n
	}
	if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
		info.BuildTime = t.UTC()
	}

	return info
}

// Print writes the build metadata as aligned "key: value" lines.
func Print(w io.Writer) {
	info := Info()
	_, _ = fmt.Fprintf(w, "name:     %s\nversion:  %s\ncommit:   %s\n", info.Name, info.Version, info.Commit)
	if info.Revision > 0 {
		_, _ = fmt.Fprintf(w, "revision: %d\n", info.Revision)
	}
	if !info.BuildTime.IsZero() {
		_, _ = fmt.Fprintf(w, "built:    %s\n", info.BuildTime.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "url:      %s\nlicense:  %s\n", info.URL, info.License)
}

// UserAgent returns the User-Agent sent with outgoing HTTP requests.
func UserAgent() string {
	return Name + "/" + Version + " (+" + URL + ")"
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
