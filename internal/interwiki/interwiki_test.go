package interwiki

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseText(t *testing.T) {
	m := &Map{entries: map[string]string{}}
	err := m.parseText(strings.NewReader(`# shared intermap
MasterWiki http://master.example.org/

Lonely
Other   https://other.example/wiki  trailing words
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"MasterWiki": "http://master.example.org/",
		"Other":      "https://other.example/wiki",
	}, m.entries)
}

func TestBuild_Precedence(t *testing.T) {
	dir := t.TempDir()
	shared := writeFile(t, dir, "shared.txt", "A http://shared-a/\nB http://shared-b/\n")
	local := writeFile(t, dir, "intermap.toml", "[interwiki]\nB = \"http://local-b/\"\nC = \"http://local-c/\"\n")

	m, err := Build(Source{
		Files:    []string{shared, filepath.Join(dir, "missing.txt"), local},
		Entries:  map[string]string{"C": "http://config-c/"},
		HomeName: "Home",
		HomeURL:  "http://home/",
	})
	require.NoError(t, err)

	tests := map[string]string{
		"A":      "http://shared-a/",
		"B":      "http://local-b/",
		"C":      "http://config-c/",
		"Home":   "http://home/",
		SelfName: "http://home/",
	}
	for name, want := range tests {
		tag, url, ok := m.Resolve(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, tag)
		assert.Equal(t, want, url, name)
	}
	assert.Equal(t, []string{"A", "B", "C", "Home", "Self"}, m.Names())
}

func TestResolve_Unknown(t *testing.T) {
	m, err := Build(Source{})
	require.NoError(t, err)
	_, _, ok := m.Resolve("Nowhere")
	assert.False(t, ok)

	var nilMap *Map
	_, _, ok = nilMap.Resolve("Nowhere")
	assert.False(t, ok)
}

func TestBuild_BadTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.toml", "[interwiki\n")
	_, err := Build(Source{Files: []string{path}})
	assert.Error(t, err)
}
