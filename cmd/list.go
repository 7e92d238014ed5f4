package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/zhubert/claude-menu/internal/manager"
	"github.com/zhubert/claude-menu/internal/reconcile"
)

var (
	listJSON   bool
	listWatch  bool
	listNotify bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions from the log store and the menu's own records",
	Long: `Reconciles the conversation logs with the menu's tracking files and the
terminal settings, then prints one row per session, newest first.

Forks that have not written their first log entry yet are shown as pending.
Profiles removed from the terminal settings by hand are dropped from the
registry along the way.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print sessions and warnings as JSON")
	listCmd.Flags().BoolVarP(&listWatch, "watch", "w", false, "Keep listing as the log store changes")
	listCmd.Flags().BoolVar(&listNotify, "notify", false, "With --watch, send a desktop notification when a fork starts")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	if listWatch {
		return watchList(cmd.Context(), mgr, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	res, err := mgr.Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	return writeList(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, time.Now())
}

// listOutput is the --json document.
type listOutput struct {
	Sessions []reconcile.Session `json:"sessions"`
	Warnings []string            `json:"warnings"`
}

func writeList(out, errOut io.Writer, res *manager.ReconcileResult, now time.Time) error {
	if listJSON {
		doc := listOutput{Sessions: res.View.Sessions(), Warnings: []string{}}
		if doc.Sessions == nil {
			doc.Sessions = []reconcile.Session{}
		}
		for _, w := range res.Warnings {
			doc.Warnings = append(doc.Warnings, w.Error())
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	renderList(out, res.View, now)
	printWarnings(errOut, res.Warnings)
	return nil
}

const (
	nameWidth    = 24
	projectWidth = 32
)

// renderList prints the view as a table. Widths are measured in terminal
// cells so wide names line up.
func renderList(w io.Writer, view *reconcile.View, now time.Time) {
	if view.Len() == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}

	fmt.Fprintf(w, "%s  %-8s  %s  %-11s  %-16s  %5s  %9s  %8s  %s\n",
		cell("NAME", nameWidth), "ID", cell("PROJECT", projectWidth),
		"STATUS", "MODIFIED", "MSGS", "TOKENS", "COST", "FORKED FROM")

	for _, s := range view.Sessions() {
		status := s.Activity.String()
		modified := humanize.RelTime(s.Modified, now, "ago", "from now")
		msgs := fmt.Sprintf("%d", s.MessageCount)
		tokens := humanize.Comma(s.Usage.Total())
		cost := fmt.Sprintf("$%.2f", s.Cost)
		if s.Pending {
			status = "pending"
			msgs, tokens, cost = "-", "-", "-"
		}
		if s.Running {
			status = "running"
		}
		if s.Modified.IsZero() {
			modified = "-"
		}
		fmt.Fprintf(w, "%s  %-8s  %s  %-11s  %-16s  %5s  %9s  %8s  %s\n",
			cell(displayName(s), nameWidth), short(s.ID), cell(s.ProjectPath, projectWidth),
			status, modified, msgs, tokens, cost, view.ParentName(s))
	}
}

// displayName falls back to the conversation's own title for sessions
// nobody has named.
func displayName(s reconcile.Session) string {
	if !s.Unnamed() {
		return s.Name
	}
	for _, alt := range []string{s.Title, s.FirstPrompt} {
		if alt = strings.Join(strings.Fields(alt), " "); alt != "" {
			return "~ " + alt
		}
	}
	return s.Name
}

func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
