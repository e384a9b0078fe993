package version

import (
	"strings"
	"testing"
)

func stamp(t *testing.T, version, commit, branch, built string) {
	t.Helper()
	origVersion, origCommit, origBranch, origBuildTime := Version, GitCommit, GitBranch, BuildTime
	t.Cleanup(func() {
		Version, GitCommit, GitBranch, BuildTime = origVersion, origCommit, origBranch, origBuildTime
	})
	Version, GitCommit, GitBranch, BuildTime = version, commit, branch, built
}

func TestGetDefaults(t *testing.T) {
	stamp(t, "dev", "", "", "")

	info := Get()
	if info.Version != "dev" {
		t.Errorf("expected version 'dev', got %q", info.Version)
	}
	if info.IsRelease() {
		t.Error("dev should not be a release")
	}
}

func TestGetStamped(t *testing.T) {
	stamp(t, "1.0.0", "abc1234def", "main", "2024-01-15T10:30:00Z")

	info := Get()
	if info.GitCommit != "abc1234def" {
		t.Errorf("stamped commit should win, got %q", info.GitCommit)
	}
	if info.BuildDate.Year() != 2024 {
		t.Errorf("expected build year 2024, got %d", info.BuildDate.Year())
	}
	if got := info.Short(); !strings.HasPrefix(got, "1.0.0-abc1234") {
		t.Errorf("expected short commit in %q", got)
	}
}

func TestDirtyVersion(t *testing.T) {
	info := Info{Version: "1.0.0-dirty", Dirty: true}
	if info.IsRelease() {
		t.Error("dirty version should not be a release")
	}
	if got := info.Short(); got != "1.0.0-dirty" {
		t.Errorf("dirty suffix should not repeat, got %q", got)
	}
	if got := (Info{Version: "1.0.0", GitCommit: "abc", Dirty: true}).Short(); got != "1.0.0-abc-dirty" {
		t.Errorf("expected '1.0.0-abc-dirty', got %q", got)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		info     Info
		contains []string
		excludes []string
	}{
		{
			name:     "main branch hidden",
			info:     Info{Version: "1.0.0", GitCommit: "abc1234", GitBranch: "main"},
			contains: []string{"1.0.0-abc1234"},
			excludes: []string{"main", "built"},
		},
		{
			name:     "feature branch shown",
			info:     Info{Version: "1.0.0", GitBranch: "feature/new-thing"},
			contains: []string{"(feature/new-thing)"},
		},
		{
			name:     "build date",
			info:     Get(),
			contains: []string{Version},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.info.String()
			for _, want := range tc.contains {
				if !strings.Contains(s, want) {
					t.Errorf("expected %q in %q", want, s)
				}
			}
			for _, not := range tc.excludes {
				if strings.Contains(s, not) {
					t.Errorf("did not expect %q in %q", not, s)
				}
			}
		})
	}
}

func TestFields(t *testing.T) {
	f := Info{Version: "2.0.0", GoVersion: "go1.26.0"}.Fields()
	if f["version"] != "2.0.0" || f["go_version"] != "go1.26.0" {
		t.Errorf("unexpected fields %v", f)
	}
}
