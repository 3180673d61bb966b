package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

// withVersionVars temporarily sets version variables and restores them after the test.
func withVersionVars(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := version, gitCommit, buildDate
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origDate
	})
	version, gitCommit, buildDate = v, commit, date
}

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
}

func TestGet_Ldflags(t *testing.T) {
	withVersionVars(t, "2.0.0", "def456", "2025-06-15")
	withBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: vcsRevisionKey, Value: "ignored"},
	}})

	info := Get()
	if info.Version != "2.0.0" || info.Commit != "def456" || info.Built != "2025-06-15" {
		t.Errorf("unexpected info: %+v", info)
	}
	s := info.String()
	for _, want := range []string{"voicekit version 2.0.0", "commit: def456", "built: 2025-06-15"} {
		if !strings.Contains(s, want) {
			t.Errorf("version info should contain %q, got: %s", want, s)
		}
	}
}

func TestGet_BuildInfoFallback(t *testing.T) {
	withVersionVars(t, devVersion, "", "")
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: vcsRevisionKey, Value: "0123456789abcdef"},
			{Key: vcsModifiedKey, Value: "true"},
		},
	})

	info := Get()
	if info.Version != "v0.3.1" {
		t.Errorf("expected module version, got %q", info.Version)
	}
	if info.Commit != "0123456" {
		t.Errorf("expected short commit, got %q", info.Commit)
	}
	if !info.Dirty {
		t.Error("expected dirty build")
	}
	if !strings.Contains(info.String(), "(dirty)") {
		t.Errorf("dirty marker missing: %s", info.String())
	}
}

func TestGet_NoBuildInfo(t *testing.T) {
	withVersionVars(t, devVersion, "", "")
	withBuildInfo(t, nil)

	if v := GetVersion(); v != devVersion {
		t.Errorf("expected %q, got %q", devVersion, v)
	}
}

func TestGet_DevelModuleVersion(t *testing.T) {
	withVersionVars(t, devVersion, "", "")
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	if v := GetVersion(); v != devVersion {
		t.Errorf("expected %q, got %q", devVersion, v)
	}
}

func TestAttrs(t *testing.T) {
	attrs := Info{Version: "1.0.0", Commit: "abc", Dirty: true, Built: "today"}.Attrs()
	if len(attrs) != 8 {
		t.Fatalf("expected 8 attrs, got %d: %v", len(attrs), attrs)
	}
	if attrs[0] != "version" || attrs[1] != "1.0.0" {
		t.Errorf("first attribute should be version, got %v", attrs[:2])
	}

	if got := (Info{Version: "dev"}).Attrs(); len(got) != 2 {
		t.Errorf("expected only version attrs, got %v", got)
	}
}

func TestLogStartup(t *testing.T) {
	// Must not panic regardless of logger configuration.
	LogStartup(t.Context())
}
