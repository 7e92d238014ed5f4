package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zhubert/claude-menu/internal/manager"
	"github.com/zhubert/claude-menu/internal/tracking"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Show where the menu looks for things and what it found",
	Long: `Prints the resolved paths, whether the log store and terminal settings
exist, the version of each tracking file, and any problems found loading
them. Nothing is changed.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	d, err := mgr.Diagnose(cmd.Context())
	if err != nil {
		return err
	}
	printDiagnosis(cmd.OutOrStdout(), d)
	return nil
}

func printDiagnosis(w io.Writer, d *manager.Diagnosis) {
	if d.ConfigPath != "" {
		fmt.Fprintf(w, "Config:       %s\n", d.ConfigPath)
	}
	fmt.Fprintf(w, "Log store:    %s (%s)\n", d.ProjectsDir, found(d.ProjectsDirFound))
	if d.ProjectsDirFound {
		fmt.Fprintf(w, "              %d session log(s), %d without a readable line\n", d.LogSessions, d.InvalidLogs)
	}

	switch {
	case d.SettingsError != nil:
		fmt.Fprintf(w, "Terminal:     %s (unreadable: %v)\n", d.SettingsPath, d.SettingsError)
	case d.SettingsFound:
		fmt.Fprintf(w, "Terminal:     %s (%d profile(s))\n", d.SettingsPath, d.SettingsProfiles)
	default:
		fmt.Fprintf(w, "Terminal:     %s (not found, created on first fork)\n", d.SettingsPath)
	}

	if len(d.ClaudeCandidates) > 0 {
		fmt.Fprintln(w, "              searched:")
		for _, c := range d.ClaudeCandidates {
			mark := " "
			if filepath.Clean(c.Path) == filepath.Clean(d.ClaudePath) {
				mark = "*"
			}
			fmt.Fprintf(w, "              %s %s (%s)\n", mark, filepath.Join(c.Path, "projects"), found(c.Found))
		}
	}

	fmt.Fprintf(w, "Backgrounds:  %s\n", d.BackgroundsDir)
	fmt.Fprintf(w, "Backups:      %s\n", d.BackupsDir)
	fmt.Fprintf(w, "Debug log:    %s\n", d.LogPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tracking files:")
	for _, t := range d.Tables {
		fmt.Fprintf(w, "  %-20s %s\n", t.Name, tableState(t))
	}

	orphaned := 0
	for _, a := range d.Artifacts {
		if a.Orphaned() {
			orphaned++
		}
	}
	fmt.Fprintf(w, "\nBackground artifacts: %d (%d unused)\n", len(d.Artifacts), orphaned)

	if len(d.Warnings) > 0 {
		fmt.Fprintln(w)
		printWarnings(w, d.Warnings)
	}
}

func tableState(t tracking.TableStatus) string {
	switch {
	case t.ReadOnly:
		return fmt.Sprintf("v%d, read-only (newer than v%d)", t.OnDisk, tracking.CurrentVersion)
	case t.OnDisk == 0:
		return fmt.Sprintf("not yet written, %d entries", t.Entries)
	default:
		return fmt.Sprintf("v%d, %d entries", t.OnDisk, t.Entries)
	}
}

func found(ok bool) string {
	if ok {
		return "found"
	}
	return "not found"
}
