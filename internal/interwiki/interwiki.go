// Package interwiki resolves interwiki names to wiki base URLs.
//
// A Map is built once at startup from intermap files and configuration and
// then passed to whatever needs to resolve names. It is read-only after Build.
package interwiki

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// SelfName always resolves to the home wiki.
const SelfName = "Self"

// Map resolves interwiki names. The zero value resolves nothing.
type Map struct {
	entries map[string]string
}

// Resolve returns the tag and base URL registered for name.
func (m *Map) Resolve(name string) (tag, baseURL string, ok bool) {
	if m == nil || m.entries == nil {
		return name, "", false
	}
	baseURL, ok = m.entries[name]
	return name, baseURL, ok
}

// Names returns all registered interwiki names in sorted order.
func (m *Map) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Source describes where a Map gets its entries. Later sources override
// earlier ones: files in order, then Entries, then the home wiki.
type Source struct {
	// Files are intermap files. Files ending in ".toml" hold an [interwiki]
	// table; any other file holds "Name URL" lines.
	Files []string

	// Entries are explicit name to URL mappings.
	Entries map[string]string

	// HomeName and HomeURL register the home wiki under its own interwiki
	// name and as Self. HomeName may be empty for an anonymous wiki.
	HomeName string
	HomeURL  string
}

// Build reads every source and returns the combined map. Missing files are
// skipped.
func Build(src Source) (*Map, error) {
	m := &Map{entries: make(map[string]string)}
	for _, path := range src.Files {
		if path == "" {
			continue
		}
		var err error
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = m.loadTOML(path)
		} else {
			err = m.loadText(path)
		}
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	for name, url := range src.Entries {
		m.entries[name] = url
	}
	if src.HomeURL != "" {
		m.entries[SelfName] = src.HomeURL
		if src.HomeName != "" {
			m.entries[src.HomeName] = src.HomeURL
		}
	}
	return m, nil
}

func (m *Map) loadText(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := m.parseText(f); err != nil {
		return fmt.Errorf("read intermap %s: %w", path, err)
	}
	return nil
}

// parseText reads "Name URL" lines. Blank lines, lines starting with '#' and
// lines with fewer than two fields are ignored.
func (m *Map) parseText(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		m.entries[fields[0]] = fields[1]
	}
	return scanner.Err()
}

type tomlFile struct {
	Interwiki map[string]string `toml:"interwiki"`
}

func (m *Map) loadTOML(path string) error {
	var file tomlFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("parse intermap %s: %w", path, err)
	}
	for name, url := range file.Interwiki {
		m.entries[name] = url
	}
	return nil
}
