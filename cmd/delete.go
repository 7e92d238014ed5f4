package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zhubert/claude-menu/internal/manager"
)

var skipConfirm bool

var deleteCmd = &cobra.Command{
	Use:     "delete <session-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a session's profile, records and unused backgrounds",
	Long: `Removes the terminal profile for <session-id>, its mapping, registry and
background records, and any background file no other profile still uses.

The conversation log itself is never deleted. Forks of the session keep
their records and show an unknown parent afterwards.

It will prompt for confirmation before proceeding unless the --yes flag is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	return runDeleteWithReader(cmd, os.Stdin, args[0])
}

// runDeleteWithReader allows injecting a reader for testing
func runDeleteWithReader(cmd *cobra.Command, input io.Reader, id string) error {
	out := cmd.OutOrStdout()
	mgr, err := newManager()
	if err != nil {
		return err
	}

	if !skipConfirm {
		fmt.Fprintf(out, "This will remove the menu's profile and records for %s.\n", id)
		fmt.Fprintln(out, "The conversation log is kept.")
		if !confirm(input, out, "Continue?") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	report, err := mgr.Delete(cmd.Context(), id)
	if report != nil {
		printCleanup(out, report)
		printWarnings(cmd.ErrOrStderr(), report.Warnings)
	}
	return err
}

func printCleanup(w io.Writer, r *manager.CleanupReport) {
	fmt.Fprintln(w, "Removed:")
	if r.RemovedHandle != "" {
		fmt.Fprintf(w, "  - terminal profile %s %s\n", r.ProfileName, r.RemovedHandle)
	}
	if r.RemovedMapping {
		fmt.Fprintln(w, "  - session mapping")
	}
	if r.RemovedProfile {
		fmt.Fprintln(w, "  - profile registry entry")
	}
	if n := len(r.RemovedBackgrounds); n > 0 {
		fmt.Fprintf(w, "  - %d background record(s)\n", n)
	}
	for _, f := range r.DeletedFiles {
		fmt.Fprintf(w, "  - %s\n", f)
	}
	if len(r.KeptArtifacts) > 0 {
		fmt.Fprintln(w, "Kept:")
		for _, f := range r.KeptArtifacts {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
	if len(r.OrphanedChildren) > 0 {
		fmt.Fprintf(w, "%d fork(s) now have an unknown parent.\n", len(r.OrphanedChildren))
	}
}

// confirm prompts the user for y/n confirmation
func confirm(input io.Reader, out io.Writer, prompt string) bool {
	reader := bufio.NewReader(input)
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
