package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/zhubert/claude-menu/internal/config"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/manager"
)

var (
	configPath            string
	debugMode             bool
	version, commit, date string
)

// SetVersionInfo sets version information from ldflags
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

var rootCmd = &cobra.Command{
	Use:   "claude-menu",
	Short: "Keep Claude sessions, terminal profiles and backgrounds in step",
	Long: `claude-menu lists the conversation sessions the Claude CLI has written,
forks them into named sessions with their own terminal profile and
background image, and cleans up after them.

Running it with no subcommand lists sessions.`,
	RunE:          runList,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/claude-menu/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func initLogging() {
	logger.SetDebug(debugMode)
}

// Execute runs the root command
func Execute() error {
	defer logger.Close()
	return fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
}

func versionString() string {
	if commit != "none" && commit != "" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

// loadConfig reads the config and points the logger at the menu's log file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if cfg.Debug {
		logger.SetDebug(true)
	}
	if err := logger.Init(cfg.LogPath()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return cfg, nil
}

func newManager() (*manager.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return manager.New(manager.Options{Config: cfg})
}

// printWarnings reports problems a command worked around.
func printWarnings(w io.Writer, warnings []error) {
	for _, err := range warnings {
		fmt.Fprintf(w, "Warning: %v\n", err)
	}
}
