package manager

import (
	"context"
	"strings"

	"github.com/zhubert/claude-menu/internal/background"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/session"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// ContinueSession returns the plan for resuming id. A named session whose
// generated background no longer matches it (new branch, renamed parent)
// gets the background redrawn in place first.
func (m *Manager) ContinueSession(ctx context.Context, id string) (*LaunchPlan, error) {
	store, err := m.openStore()
	if err != nil {
		return nil, err
	}
	view := m.buildView(store)
	s, ok := view.Get(id)
	if !ok {
		return nil, cerrors.SessionNotFound(id)
	}

	args := session.ResumeArgs(id)
	plan := &LaunchPlan{
		SessionID:     id,
		Dir:           s.ProjectPath,
		Args:          args,
		Commandline:   session.Commandline(args),
		ProfileName:   s.ProfileName,
		ProfileHandle: s.ProfileHandle,
	}
	if s.Unnamed() {
		return plan, nil
	}

	log := logger.WithSession(id).With("component", "Manager")
	bg, ok := store.Background(s.Name)
	if !ok || (bg.ImageType != tracking.ImageFork && bg.ImageType != tracking.ImageContinue) {
		return plan, nil
	}
	info := m.infoFor(ctx, view, s, s.Name)
	if !background.Stale(bg.BackgroundPath, info) {
		return plan, nil
	}

	if err := m.renderer.Render(background.Source{Kind: tracking.ImageContinue, Info: info}, bg.BackgroundPath); err != nil {
		log.Warn("background refresh failed", "path", bg.BackgroundPath, "error", err)
		return plan, nil
	}
	if err := store.AddBackground(tracking.BackgroundEntry{
		SessionName:    s.Name,
		BackgroundPath: bg.BackgroundPath,
		TextContent:    strings.Join(info.Lines(), "\n"),
		ImageType:      tracking.ImageContinue,
	}); err != nil {
		return nil, err
	}
	if err := store.Save(); err != nil {
		log.Warn("failed to record refreshed background", "error", err)
	}
	log.Info("refreshed background", "path", bg.BackgroundPath)
	return plan, nil
}
