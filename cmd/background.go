package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zhubert/claude-menu/internal/manager"
)

var (
	bgText       string
	bgFile       string
	bgPath       string
	bgOnConflict string
)

var backgroundCmd = &cobra.Command{
	Use:     "background <profile-name>",
	Aliases: []string{"bg"},
	Short:   "Redraw the background image of a profile",
	Long: `Draws a new background for <profile-name> (Claude-<name> or just <name>)
and points its terminal profile at it.

With no flags the session's details are drawn again. --text draws custom
text instead, and --file uses an existing image. --path writes somewhere
other than the default backgrounds directory; if another profile already
uses that file you are asked whether to overwrite it, pick a new name or
abort.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackground,
}

func init() {
	backgroundCmd.Flags().StringVar(&bgText, "text", "", "Custom text to draw")
	backgroundCmd.Flags().StringVar(&bgFile, "file", "", "Existing image to use")
	backgroundCmd.Flags().StringVar(&bgPath, "path", "", "Where to write the image (absolute .png path)")
	backgroundCmd.Flags().StringVar(&bgOnConflict, "on-conflict", "", "When the file is shared: overwrite, rename or abort (default: ask)")
	backgroundCmd.MarkFlagsMutuallyExclusive("text", "file")
	rootCmd.AddCommand(backgroundCmd)
}

func runBackground(cmd *cobra.Command, args []string) error {
	return runBackgroundWithReader(cmd, os.Stdin, args[0])
}

// runBackgroundWithReader allows injecting a reader for testing
func runBackgroundWithReader(cmd *cobra.Command, input io.Reader, profile string) error {
	decide, err := conflictPolicy(bgOnConflict, input, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	mgr, err := newManager()
	if err != nil {
		return err
	}
	res, err := mgr.RegenerateBackground(cmd.Context(), manager.BackgroundRequest{
		ProfileName: profile,
		Text:        bgText,
		File:        bgFile,
		Path:        bgPath,
		OnConflict:  decide,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Background for %s: %s (%s)\n", res.ProfileName, res.Path, res.Kind)
	for _, f := range res.DeletedFiles {
		fmt.Fprintf(out, "  removed: %s\n", f)
	}
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	return nil
}
