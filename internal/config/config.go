package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/fsx"
)

// Version is the current config file version.
const Version = 1

// HomeEnv overrides the default menu directory when set.
const HomeEnv = "CLAUDE_MENU_HOME"

const (
	DefaultBaseProfileName   = "Claude-Base"
	DefaultBackgroundOpacity = 0.3
	DefaultBranchTimeoutMs   = 300
)

// Config holds the application configuration
type Config struct {
	ClaudePath           string  `json:"claudePath"`                     // Parent of the conversation log store (~/.claude)
	MenuPath             string  `json:"menuPath"`                       // Tracking stores, backgrounds, backups, logs
	TerminalSettingsPath string  `json:"terminalSettingsPath,omitempty"` // Externally-owned terminal settings.json
	BaseProfileName      string  `json:"baseProfileName,omitempty"`      // Baseline profile every created profile matches
	BackgroundOpacity    float64 `json:"backgroundOpacity"`              // Opacity written with background images; 0 is allowed
	BranchTimeoutMs      int     `json:"branchTimeoutMs,omitempty"`      // Bound on git branch lookups
	Debug                bool    `json:"debug,omitempty"`

	mu       sync.RWMutex
	filePath string
}

// file is the on-disk envelope.
type file struct {
	Version int     `json:"version"`
	Config  *Config `json:"config"`
}

// DefaultMenuPath returns the menu directory, honoring CLAUDE_MENU_HOME.
func DefaultMenuPath() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "claude-menu"), nil
}

// DefaultPath returns the path to the config file.
func DefaultPath() (string, error) {
	dir, err := DefaultMenuPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Defaults returns a config populated with default values, not yet bound to a file.
func Defaults() (*Config, error) {
	menu, err := DefaultMenuPath()
	if err != nil {
		return nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		ClaudePath:        DiscoverClaudePath(home),
		MenuPath:          menu,
		BackgroundOpacity: DefaultBackgroundOpacity,
	}
	cfg.ensureInitialized()
	return cfg, nil
}

// Load reads the config from path, or returns defaults if it doesn't exist.
// An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}
	cfg.filePath = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, cerrors.ConfigLoadFailed(path, err)
	}

	// Fields the file omits keep their defaults.
	env := file{Config: cfg}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, cerrors.ConfigLoadFailed(path, err)
	}
	if env.Version > Version {
		return nil, cerrors.ConfigInvalid(fmt.Sprintf("config version %d is newer than supported version %d", env.Version, Version))
	}

	// Fill anything the file left empty before validating
	cfg.ensureInitialized()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ensureInitialized fills zero-valued fields with defaults. Opacity is not
// among them: a configured 0 is kept.
// Only called during Load before the Config is shared.
func (c *Config) ensureInitialized() {
	if c.BaseProfileName == "" {
		c.BaseProfileName = DefaultBaseProfileName
	}
	if c.BranchTimeoutMs == 0 {
		c.BranchTimeoutMs = DefaultBranchTimeoutMs
	}
	if c.TerminalSettingsPath == "" {
		c.TerminalSettingsPath = defaultTerminalSettingsPath(c.MenuPath)
	}
}

// defaultTerminalSettingsPath locates Windows Terminal's settings.json, falling
// back to a file inside the menu directory on other platforms.
func defaultTerminalSettingsPath(menuPath string) string {
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "Packages", "Microsoft.WindowsTerminal_8wekyb3d8bbwe", "LocalState", "settings.json")
		}
	}
	return filepath.Join(menuPath, "terminal-settings.json")
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ClaudePath == "" {
		return cerrors.ConfigInvalid("claudePath must not be empty")
	}
	if c.MenuPath == "" {
		return cerrors.ConfigInvalid("menuPath must not be empty")
	}
	if c.BackgroundOpacity < 0 || c.BackgroundOpacity > 1 {
		return cerrors.ConfigInvalid(fmt.Sprintf("backgroundOpacity %.2f out of range [0, 1]", c.BackgroundOpacity))
	}
	if c.BranchTimeoutMs < 0 || c.BranchTimeoutMs > 10000 {
		return cerrors.ConfigInvalid(fmt.Sprintf("branchTimeoutMs %d out of range [0, 10000]", c.BranchTimeoutMs))
	}
	if c.BaseProfileName == "" {
		return cerrors.ConfigInvalid("baseProfileName must not be empty")
	}
	return nil
}

// Save writes the config to disk atomically.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.filePath
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := json.MarshalIndent(file{Version: Version, Config: c}, "", "  ")
	if err != nil {
		return cerrors.ConfigSaveFailed(path, err)
	}

	if err := fsx.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return cerrors.ConfigSaveFailed(path, err)
	}
	return nil
}

// FilePath returns the file the config was loaded from.
func (c *Config) FilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filePath
}

// SetDebug toggles debug logging and is persisted by Save.
func (c *Config) SetDebug(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Debug = enabled
}
