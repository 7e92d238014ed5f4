package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var continueCmd = &cobra.Command{
	Use:     "continue <session-id>",
	Aliases: []string{"resume"},
	Short:   "Print how to resume a session",
	Long: `Prints the command that resumes <session-id> in its project directory.
A named session whose generated background has gone stale (a new branch,
a renamed parent) gets it redrawn first.`,
	Args: cobra.ExactArgs(1),
	RunE: runContinue,
}

func init() {
	rootCmd.AddCommand(continueCmd)
}

func runContinue(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	plan, err := mgr.ContinueSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if plan.ProfileName != "" {
		fmt.Fprintf(out, "Profile: %s\n", plan.ProfileName)
	}
	printLaunch(out, *plan)
	return nil
}
