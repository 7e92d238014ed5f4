package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Locations checked under WSL. Variables so tests can point them elsewhere.
var (
	procVersionPath = "/proc/version"
	windowsUsersDir = filepath.Join("/mnt", "c", "Users")
)

// Profile directories under C:\Users that never belong to a person.
var windowsSystemUsers = map[string]bool{
	"Public":       true,
	"Default":      true,
	"Default User": true,
	"All Users":    true,
}

// ClaudeCandidate is one place the conversation CLI may keep its data.
// Found is true when its projects directory exists.
type ClaudeCandidate struct {
	Path  string
	Found bool
}

// ClaudeCandidates lists where the conversation CLI may keep its data, in
// the order they are tried: the home directory, each Windows user's home
// when running under WSL, then the XDG config directory.
func ClaudeCandidates(home string) []ClaudeCandidate {
	paths := []string{filepath.Join(home, ".claude")}
	if isWSL() {
		paths = append(paths, windowsClaudeDirs()...)
	}
	paths = append(paths, filepath.Join(home, ".config", "claude"))

	out := make([]ClaudeCandidate, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(p, "projects"))
		out = append(out, ClaudeCandidate{Path: p, Found: err == nil && info.IsDir()})
	}
	return out
}

// DiscoverClaudePath returns the first candidate with a projects directory,
// or ~/.claude when none has one yet.
func DiscoverClaudePath(home string) string {
	for _, c := range ClaudeCandidates(home) {
		if c.Found {
			return c.Path
		}
	}
	return filepath.Join(home, ".claude")
}

func isWSL() bool {
	data, err := os.ReadFile(procVersionPath)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

// windowsClaudeDirs returns .claude under every Windows user home that has
// one.
func windowsClaudeDirs() []string {
	entries, err := os.ReadDir(windowsUsersDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || windowsSystemUsers[e.Name()] {
			continue
		}
		dir := filepath.Join(windowsUsersDir, e.Name(), ".claude")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			out = append(out, dir)
		}
	}
	return out
}
