package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/logstore"
	"github.com/zhubert/claude-menu/internal/manager"
	"github.com/zhubert/claude-menu/internal/notification"
	"github.com/zhubert/claude-menu/internal/reconcile"
)

// watchList lists once, then again after every settled burst of changes
// under the log store or the menu directory. Each pass is a full
// reconcile, run one at a time.
func watchList(ctx context.Context, mgr *manager.Manager, out, errOut io.Writer) error {
	log := logger.ComponentLogger("Watch")
	cfg := mgr.Config()

	w, err := logstore.NewWatcher(cfg.ProjectsDir(), logstore.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("error watching %s: %w", cfg.ProjectsDir(), err)
	}
	defer w.Close()
	if info, err := os.Stat(cfg.MenuPath); err == nil && info.IsDir() {
		if err := w.Watch(cfg.MenuPath); err != nil {
			log.Warn("failed to watch menu directory", "dir", cfg.MenuPath, "error", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var pending map[string]bool
	refresh := func() error {
		res, err := mgr.Reconcile(ctx)
		if err != nil {
			return err
		}
		if listNotify {
			for _, s := range started(pending, res.View) {
				_ = notification.SessionStarted(s.Name)
			}
		}
		pending = pendingIDs(res.View)

		fmt.Fprintf(out, "\n%s\n", time.Now().Format("15:04:05"))
		return writeList(out, errOut, res, time.Now())
	}

	if err := refresh(); err != nil {
		return err
	}
	for range w.Changes() {
		log.Debug("log store changed, refreshing")
		if err := refresh(); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
	}

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func pendingIDs(view *reconcile.View) map[string]bool {
	ids := make(map[string]bool)
	for _, s := range view.Pending() {
		ids[s.ID] = true
	}
	return ids
}

// started returns the sessions that were pending last pass and have a log
// now.
func started(wasPending map[string]bool, view *reconcile.View) []reconcile.Session {
	var out []reconcile.Session
	for id := range wasPending {
		if s, ok := view.Get(id); ok && !s.Pending {
			out = append(out, s)
		}
	}
	return out
}
