package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zhubert/claude-menu/internal/artifact"
	"github.com/zhubert/claude-menu/internal/manager"
)

var (
	forkModel      string
	forkOnConflict string
)

var forkCmd = &cobra.Command{
	Use:   "fork <session-id> <name>",
	Short: "Fork a session into a new named session with its own profile",
	Long: `Records a new session forked from <session-id>, adds a terminal profile
named Claude-<name> that resumes it, and draws a background image showing
where it came from.

The new session is pending until the Claude CLI writes its first log entry.
The command prints how to launch it.`,
	Args: cobra.ExactArgs(2),
	RunE: runFork,
}

func init() {
	forkCmd.Flags().StringVarP(&forkModel, "model", "m", "", "Model for the fork: opus, sonnet or haiku (default: the parent's)")
	forkCmd.Flags().StringVar(&forkOnConflict, "on-conflict", "", "When the background is shared: overwrite, rename or abort (default: ask)")
	rootCmd.AddCommand(forkCmd)
}

func runFork(cmd *cobra.Command, args []string) error {
	return runForkWithReader(cmd, os.Stdin, args[0], args[1])
}

// runForkWithReader allows injecting a reader for testing
func runForkWithReader(cmd *cobra.Command, input io.Reader, parentID, name string) error {
	decide, err := conflictPolicy(forkOnConflict, input, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	mgr, err := newManager()
	if err != nil {
		return err
	}
	res, err := mgr.Fork(cmd.Context(), manager.ForkRequest{
		ParentID:   parentID,
		Name:       name,
		Model:      forkModel,
		OnConflict: decide,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Forked %s as %s\n", short(parentID), res.ProfileName)
	fmt.Fprintf(out, "  session:    %s\n", res.SessionID)
	fmt.Fprintf(out, "  profile:    %s\n", res.ProfileHandle)
	if res.BackgroundPath != "" {
		fmt.Fprintf(out, "  background: %s\n", res.BackgroundPath)
	}
	printLaunch(out, res.Launch)
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}

func printLaunch(w io.Writer, plan manager.LaunchPlan) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Launch with:")
	if plan.Dir != "" {
		fmt.Fprintf(w, "  cd %s && %s\n", plan.Dir, plan.Commandline)
	} else {
		fmt.Fprintf(w, "  %s\n", plan.Commandline)
	}
}

// conflictPolicy turns --on-conflict into a ConflictFunc. With no flag the
// user is asked.
func conflictPolicy(flag string, input io.Reader, out io.Writer) (manager.ConflictFunc, error) {
	if flag == "" {
		return chooseConflict(input, out), nil
	}
	d, err := artifact.ParseDecision(flag)
	if err != nil {
		return nil, err
	}
	return manager.Always(d), nil
}

// chooseConflict prompts for what to do about a shared background. Anything
// other than a recognised answer aborts.
func chooseConflict(input io.Reader, out io.Writer) manager.ConflictFunc {
	return func(c *artifact.ConflictInfo) artifact.Decision {
		fmt.Fprintf(out, "Background %s is used by %d profile(s):\n", c.Path, c.UsageCount)
		for _, p := range c.Profiles {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		fmt.Fprint(out, "[o]verwrite, [r]ename or [a]bort? ")

		response, err := bufio.NewReader(input).ReadString('\n')
		if err != nil && response == "" {
			return artifact.DecideAbort
		}
		switch strings.ToLower(strings.TrimSpace(response)) {
		case "o", "overwrite":
			return artifact.DecideOverwrite
		case "r", "rename":
			return artifact.DecideRename
		default:
			return artifact.DecideAbort
		}
	}
}
