package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the config file and the values in effect",
	Long: `Prints the path of the config file followed by the configuration in
effect, defaults included. The file does not have to exist.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configDebugCmd = &cobra.Command{
	Use:       "debug <on|off>",
	Short:     "Turn debug logging on or off for every run",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runConfigDebug,
}

func init() {
	configCmd.AddCommand(configDebugCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# %s\n", cfg.FilePath())
	fmt.Fprintln(out, string(data))
	return nil
}

func runConfigDebug(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		enabled = true
	case "off", "false", "0":
	default:
		return fmt.Errorf("expected on or off, got %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.SetDebug(enabled)
	if err := cfg.Save(); err != nil {
		return err
	}
	state := "off"
	if enabled {
		state = "on"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Debug logging %s (saved to %s)\n", state, cfg.FilePath())
	return nil
}
