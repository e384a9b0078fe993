package version

import (
	"runtime/debug"
	"strings"
	"time"
)

// Set with -ldflags -X.
var (
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
)

const shortCommit = 7

// Info describes the running build.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	GitBranch string    `json:"git_branch,omitempty"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date,omitzero"`
	Dirty     bool      `json:"dirty,omitempty"`
}

// Get collects the build information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		Dirty:     strings.HasSuffix(Version, "dirty"),
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
			}
		case "vcs.modified":
			info.Dirty = info.Dirty || s.Value == "true"
		case "vcs.time":
			if info.BuildDate.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuildDate = t
				}
			}
		}
	}
	return info
}

// IsRelease reports whether the build carries a clean, stamped version.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !i.Dirty
}

// Short returns version[-commit][-dirty], e.g. "1.2.0-abc1234".
func (i Info) Short() string {
	parts := []string{i.Version}
	if c := i.GitCommit; c != "" {
		if len(c) > shortCommit {
			c = c[:shortCommit]
		}
		parts = append(parts, c)
	}
	if i.Dirty && !strings.HasSuffix(i.Version, "dirty") {
		parts = append(parts, "dirty")
	}
	return strings.Join(parts, "-")
}

// String returns the short version plus the branch when it is not a
// mainline branch and the build date when known.
func (i Info) String() string {
	s := i.Short()
	if b := i.GitBranch; b != "" && b != "main" && b != "master" {
		s += " (" + b + ")"
	}
	if !i.BuildDate.IsZero() {
		s += " built " + i.BuildDate.UTC().Format(time.RFC3339)
	}
	return s
}

// Fields returns the build as log fields.
func (i Info) Fields() map[string]interface{} {
	f := map[string]interface{}{"version": i.Short()}
	if i.GoVersion != "" {
		f["go_version"] = i.GoVersion
	}
	return f
}

// Short returns Get().Short().
func Short() string { return Get().Short() }
