package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
)

func TestLoad_NewConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv(HomeEnv, "")

	// Load should return defaults when no file exists
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ClaudePath != filepath.Join(tmpDir, ".claude") {
		t.Errorf("ClaudePath = %q", cfg.ClaudePath)
	}
	if cfg.MenuPath != filepath.Join(tmpDir, ".config", "claude-menu") {
		t.Errorf("MenuPath = %q", cfg.MenuPath)
	}
	if cfg.BaseProfileName != DefaultBaseProfileName {
		t.Errorf("BaseProfileName = %q", cfg.BaseProfileName)
	}
	if cfg.BackgroundOpacity != DefaultBackgroundOpacity {
		t.Errorf("BackgroundOpacity = %v", cfg.BackgroundOpacity)
	}
	if cfg.BranchTimeoutMs != DefaultBranchTimeoutMs {
		t.Errorf("BranchTimeoutMs = %d", cfg.BranchTimeoutMs)
	}
	if cfg.TerminalSettingsPath == "" {
		t.Error("TerminalSettingsPath should have a default")
	}
	if _, err := os.Stat(cfg.FilePath()); !os.IsNotExist(err) {
		t.Error("Load() must not create the config file")
	}
}

func TestLoad_HomeEnvOverride(t *testing.T) {
	menu := filepath.Join(t.TempDir(), "menu")
	t.Setenv(HomeEnv, menu)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.MenuPath != menu {
		t.Errorf("MenuPath = %q, want %q", cfg.MenuPath, menu)
	}
	if cfg.FilePath() != filepath.Join(menu, "config.json") {
		t.Errorf("FilePath = %q", cfg.FilePath())
	}
}

func TestLoad_ExistingConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configData := `{
		"version": 1,
		"config": {
			"claudePath": "/data/claude",
			"menuPath": "/data/menu",
			"backgroundOpacity": 0.5,
			"debug": true
		}
	}`

	configFile := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configFile, []byte(configData), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ClaudePath != "/data/claude" {
		t.Errorf("ClaudePath = %q", cfg.ClaudePath)
	}
	if cfg.BackgroundOpacity != 0.5 {
		t.Errorf("BackgroundOpacity = %v", cfg.BackgroundOpacity)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	// Unset fields get defaults
	if cfg.BranchTimeoutMs != DefaultBranchTimeoutMs {
		t.Errorf("BranchTimeoutMs = %d", cfg.BranchTimeoutMs)
	}
	if cfg.ProjectsDir() != filepath.Join("/data/claude", "projects") {
		t.Errorf("ProjectsDir = %q", cfg.ProjectsDir())
	}
}

func TestLoad_ZeroOpacityIsKept(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configFile := filepath.Join(t.TempDir(), "config.json")
	data := `{"version": 1, "config": {"claudePath": "/c", "menuPath": "/m", "backgroundOpacity": 0}}`
	if err := os.WriteFile(configFile, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.BackgroundOpacity != 0 {
		t.Errorf("BackgroundOpacity = %v, want the configured 0", cfg.BackgroundOpacity)
	}

	// A zero opacity survives a save.
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	reloaded, err := Load(configFile)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.BackgroundOpacity != 0 {
		t.Errorf("reloaded BackgroundOpacity = %v, want 0", reloaded.BackgroundOpacity)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configFile, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configFile)
	if !cerrors.Is(err, cerrors.KindConfig) {
		t.Errorf("Load() = %v, want a config error", err)
	}
	if err == nil || !strings.Contains(err.Error(), configFile) {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestLoad_FutureVersion(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configFile, []byte(`{"version": 9, "config": {}}`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configFile)
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("expected version error, got %v", err)
	}
	if !cerrors.Is(err, cerrors.KindConfig) {
		t.Errorf("version error should be a config error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ClaudePath:        "/c",
			MenuPath:          "/m",
			BaseProfileName:   DefaultBaseProfileName,
			BackgroundOpacity: 0.3,
			BranchTimeoutMs:   300,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero opacity", func(c *Config) { c.BackgroundOpacity = 0 }, false},
		{"empty claude path", func(c *Config) { c.ClaudePath = "" }, true},
		{"empty menu path", func(c *Config) { c.MenuPath = "" }, true},
		{"opacity too high", func(c *Config) { c.BackgroundOpacity = 1.5 }, true},
		{"negative opacity", func(c *Config) { c.BackgroundOpacity = -0.1 }, true},
		{"timeout too long", func(c *Config) { c.BranchTimeoutMs = 60000 }, true},
		{"empty base profile", func(c *Config) { c.BaseProfileName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !cerrors.Is(err, cerrors.KindConfig) {
				t.Errorf("Validate() error kind = %v", cerrors.GetKind(err))
			}
		})
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	cfg.SetDebug(true)
	cfg.BackgroundOpacity = 0.45

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var env struct {
		Version int             `json:"version"`
		Config  json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("saved config is not JSON: %v", err)
	}
	if env.Version != Version {
		t.Errorf("version = %d, want %d", env.Version, Version)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !loaded.Debug || loaded.BackgroundOpacity != 0.45 {
		t.Errorf("reloaded config lost values: debug=%v opacity=%v", loaded.Debug, loaded.BackgroundOpacity)
	}
}

func TestConfig_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the parent directory should be.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{ClaudePath: "/c", MenuPath: "/m", filePath: filepath.Join(blocker, "config.json")}
	if err := cfg.Save(); !cerrors.Is(err, cerrors.KindConfig) {
		t.Errorf("Save() = %v, want a config error", err)
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := &Config{ClaudePath: "/c", MenuPath: "/m", BranchTimeoutMs: 250}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"mapping", cfg.MappingPath(), filepath.Join("/m", MappingFile)},
		{"registry", cfg.RegistryPath(), filepath.Join("/m", RegistryFile)},
		{"backgrounds", cfg.BackgroundTrackingPath(), filepath.Join("/m", BackgroundTrackingFile)},
		{"session dir", cfg.SessionBackgroundDir("exp1"), filepath.Join("/m", "backgrounds", "exp1")},
		{"default image", cfg.DefaultBackgroundPath("exp1"), filepath.Join("/m", "backgrounds", "exp1", "background.png")},
		{"backups", cfg.BackupsDir(), filepath.Join("/m", "backups")},
		{"log", cfg.LogPath(), filepath.Join("/m", "logs", "debug.log")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.BranchTimeout().Milliseconds() != 250 {
		t.Errorf("BranchTimeout = %v", cfg.BranchTimeout())
	}
}

func TestConfig_ConcurrentSave(t *testing.T) {
	t.Parallel()

	// Detects data races when run with -race; every Save goes through an
	// atomic rename so the file is always valid JSON.
	configPath := filepath.Join(t.TempDir(), "config.json")
	cfg := &Config{ClaudePath: "/c", MenuPath: "/m", filePath: configPath}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := cfg.Save(); err != nil {
				t.Errorf("Save() failed in goroutine: %v", err)
			}
		}()
		go func(n int) {
			defer wg.Done()
			cfg.SetDebug(n%2 == 0)
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("Config file is corrupted: %s", data)
	}
}
