package util

import (
	"path/filepath"
	"testing"
)

func TestHomeDir(t *testing.T) {
	home := HomeDir()
	if home == "" {
		t.Error("HomeDir() returned empty string")
	}

	// Verify it's an absolute path
	if !filepath.IsAbs(home) {
		t.Errorf("HomeDir() returned relative path: %s", home)
	}
}

func TestWikisyncPath(t *testing.T) {
	t.Setenv(HomeEnv, "")
	if got, want := WikisyncPath(), filepath.Join(HomeDir(), ".wikisync"); got != want {
		t.Errorf("WikisyncPath() = %q, want %q", got, want)
	}

	t.Setenv(HomeEnv, "/srv/wikisync")
	if got := WikisyncPath(); got != "/srv/wikisync" {
		t.Errorf("WikisyncPath() with %s = %q", HomeEnv, got)
	}
	if got := WikisyncDataPath(); got != "/srv/wikisync/data" {
		t.Errorf("WikisyncDataPath() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home := HomeDir()
	tests := []struct {
		name    string
		path    string
		baseDir string
		want    string
	}{
		{name: "empty", path: "", baseDir: "/base", want: ""},
		{name: "tilde", path: "~", baseDir: "/base", want: home},
		{name: "tilde prefix", path: "~/wiki/intermap.txt", baseDir: "/base", want: filepath.Join(home, "wiki", "intermap.txt")},
		{name: "absolute", path: "/etc/wiki/../intermap.txt", baseDir: "/base", want: "/etc/intermap.txt"},
		{name: "relative", path: "data", baseDir: "/base", want: "/base/data"},
		{name: "relative without base", path: "./data", baseDir: "", want: "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.path, tt.baseDir); got != tt.want {
				t.Errorf("ExpandPath(%q, %q) = %q, want %q", tt.path, tt.baseDir, got, tt.want)
			}
		})
	}
}

func TestExpandPaths(t *testing.T) {
	got := ExpandPaths([]string{"a", "", "/b"}, "/base")
	want := []string{"/base/a", "/b"}
	if len(got) != len(want) {
		t.Fatalf("ExpandPaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExpandPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
