package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zhubert/claude-menu/internal/manager"
)

var (
	newModel      string
	newOnConflict string
)

var newCmd = &cobra.Command{
	Use:   "new <name> [directory]",
	Short: "Start a new named session with its own profile",
	Long: `Records a new session named <name> in [directory] (default: the current
directory), adds a terminal profile named Claude-<name> that resumes it, and
draws a background image for it.

The session is pending until the Claude CLI writes its first log entry.
The command prints how to launch it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringVarP(&newModel, "model", "m", "", "Model for the session: opus, sonnet or haiku (default: the CLI's)")
	newCmd.Flags().StringVar(&newOnConflict, "on-conflict", "", "When the background is shared: overwrite, rename or abort (default: ask)")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	return runNewWithReader(cmd, os.Stdin, args)
}

// runNewWithReader allows injecting a reader for testing
func runNewWithReader(cmd *cobra.Command, input io.Reader, args []string) error {
	dir := ""
	if len(args) > 1 {
		dir = args[1]
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}
	decide, err := conflictPolicy(newOnConflict, input, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	mgr, err := newManager()
	if err != nil {
		return err
	}
	res, err := mgr.NewSession(cmd.Context(), manager.NewSessionRequest{
		Name:       args[0],
		Dir:        dir,
		Model:      newModel,
		OnConflict: decide,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", res.ProfileName)
	fmt.Fprintf(out, "  session:    %s\n", res.SessionID)
	fmt.Fprintf(out, "  profile:    %s\n", res.ProfileHandle)
	if res.BackgroundPath != "" {
		fmt.Fprintf(out, "  background: %s\n", res.BackgroundPath)
	}
	printLaunch(out, res.Launch)
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}
