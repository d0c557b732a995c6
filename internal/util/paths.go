package util

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv overrides the wikisync home directory.
const HomeEnv = "WIKISYNC_HOME"

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// WikisyncPath returns the wikisync home directory, ~/.wikisync unless
// WIKISYNC_HOME is set.
func WikisyncPath() string {
	if v := os.Getenv(HomeEnv); v != "" {
		return v
	}
	return filepath.Join(HomeDir(), ".wikisync")
}

// WikisyncDataPath returns the default data directory holding the page
// database and the tag logs.
func WikisyncDataPath() string {
	return filepath.Join(WikisyncPath(), "data")
}

// ExpandPath expands a leading ~ to the home directory and resolves
// relative paths against baseDir. An empty path stays empty.
func ExpandPath(path, baseDir string) string {
	switch {
	case path == "":
		return ""
	case path == "~":
		return HomeDir()
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(HomeDir(), path[2:])
	case filepath.IsAbs(path) || baseDir == "":
		return filepath.Clean(path)
	default:
		return filepath.Join(baseDir, path)
	}
}

// ExpandPaths applies ExpandPath to every path, dropping empty ones.
func ExpandPaths(paths []string, baseDir string) []string {
	expanded := make([]string, 0, len(paths))
	for _, p := range paths {
		if e := ExpandPath(p, baseDir); e != "" {
			expanded = append(expanded, e)
		}
	}
	return expanded
}
