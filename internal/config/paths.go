package config

import (
	"path/filepath"
	"time"
)

// File names inside the menu directory.
const (
	MappingFile            = "session-mapping.json"
	RegistryFile           = "profile-registry.json"
	BackgroundTrackingFile = "background-tracking.json"
	BackgroundImageFile    = "background.png"
)

// ProjectsDir returns the root of the conversation log store.
func (c *Config) ProjectsDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(c.ClaudePath, "projects")
}

// MappingPath returns the session-mapping store path.
func (c *Config) MappingPath() string {
	return c.menuFile(MappingFile)
}

// RegistryPath returns the legacy profile-registry store path.
func (c *Config) RegistryPath() string {
	return c.menuFile(RegistryFile)
}

// BackgroundTrackingPath returns the background-tracking store path.
func (c *Config) BackgroundTrackingPath() string {
	return c.menuFile(BackgroundTrackingFile)
}

func (c *Config) BackgroundsDir() string {
	return c.menuFile("backgrounds")
}

// SessionBackgroundDir returns the directory holding name's default artifact.
func (c *Config) SessionBackgroundDir(name string) string {
	return filepath.Join(c.BackgroundsDir(), name)
}

// DefaultBackgroundPath returns the artifact path a new session claims first.
func (c *Config) DefaultBackgroundPath(name string) string {
	return filepath.Join(c.SessionBackgroundDir(name), BackgroundImageFile)
}

func (c *Config) BackupsDir() string {
	return c.menuFile("backups")
}

func (c *Config) LogPath() string {
	return filepath.Join(c.menuFile("logs"), "debug.log")
}

// BranchTimeout returns the git branch lookup bound as a duration.
func (c *Config) BranchTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.BranchTimeoutMs) * time.Millisecond
}

func (c *Config) menuFile(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(c.MenuPath, name)
}
