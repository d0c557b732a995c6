package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Fixture writes and reads files below a base directory for E2E tests.
type Fixture struct {
	t       *testing.T
	baseDir string
}

// LocalFixture returns a fixture rooted at the local wiki's home, the
// directory holding config.yaml and the data directory.
func (h *Harness) LocalFixture() *Fixture {
	return &Fixture{t: h.t, baseDir: h.homeDir}
}

// Path returns the full path for relPath.
func (f *Fixture) Path(relPath string) string {
	return filepath.Join(f.baseDir, relPath)
}

// WriteFile writes content to relPath, creating parent directories, and
// returns the full path.
func (f *Fixture) WriteFile(relPath, content string) string {
	f.t.Helper()
	fullPath := f.Path(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		f.t.Fatalf("failed to create directory for %s: %v", fullPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
		f.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
	return fullPath
}

// ReadFile returns the content of relPath.
func (f *Fixture) ReadFile(relPath string) string {
	f.t.Helper()
	// #nosec G304 - path is below the fixture base directory
	data, err := os.ReadFile(f.Path(relPath))
	if err != nil {
		f.t.Fatalf("failed to read file %s: %v", relPath, err)
	}
	return string(data)
}

// WriteIntermap writes an intermap.txt style file with one "Name URL" line
// per remote and returns its full path.
func (f *Fixture) WriteIntermap(relPath string, remotes ...*RemoteWiki) string {
	f.t.Helper()
	var sb strings.Builder
	sb.WriteString("# generated by the e2e harness\n")
	for _, r := range remotes {
		sb.WriteString(r.Identity.InterwikiName + " " + r.URL() + "\n")
	}
	return f.WriteFile(relPath, sb.String())
}
