package context

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// VersionInfo is the build information of the application.
type VersionInfo struct {
	Semantic  string
	Commit    string
	Dirty     bool
	GoVersion string
}

func (vi *VersionInfo) String() string {
	var sb strings.Builder
	sb.WriteString(vi.Semantic)
	if vi.Commit != "" {
		commit := vi.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(&sb, "-%s", commit)
		if vi.Dirty {
			sb.WriteString("-dirty")
		}
	}
	fmt.Fprintf(&sb, " (%s)", vi.GoVersion)

	return sb.String()
}

// GetVersion returns the version information embedded in the binary by the Go
// toolchain.
func GetVersion() (*VersionInfo, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("failed reading build information")
	}

	vi := &VersionInfo{Semantic: bi.Main.Version, GoVersion: bi.GoVersion}
	if vi.Semantic == "" || vi.Semantic == "(devel)" {
		vi.Semantic = "v0.0.0-dev"
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			vi.Commit = s.Value
		case "vcs.modified":
			vi.Dirty = s.Value == "true"
		}
	}

	return vi, nil
}
