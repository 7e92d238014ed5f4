package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <session-id> <name>",
	Short: "Give a session a new name",
	Long: `Renames <session-id>, keeping its fork parent, model and project. The
terminal profile becomes Claude-<name>; a generated background is redrawn
under the new name and the old image is removed once nothing uses it.

An unnamed session gets a mapping and a profile of its own.`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	res, err := mgr.RenameSession(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	from := res.OldName
	if from == "" {
		from = short(res.SessionID)
	}
	fmt.Fprintf(out, "Renamed %s to %s (%s)\n", from, res.NewName, res.ProfileName)
	if res.BackgroundPath != "" {
		fmt.Fprintf(out, "  background: %s\n", res.BackgroundPath)
	}
	for _, f := range res.DeletedFiles {
		fmt.Fprintf(out, "  removed:    %s\n", f)
	}
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}
