package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/claude-menu/internal/artifact"
	"github.com/zhubert/claude-menu/internal/background"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/session"
	"github.com/zhubert/claude-menu/internal/terminal"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// BackgroundRequest selects what to draw for a profile. With neither Text
// nor File set the session's own details are drawn. Path overrides the
// default artifact location.
type BackgroundRequest struct {
	ProfileName string
	Text        string
	File        string
	Path        string
	OnConflict  ConflictFunc
}

func (r BackgroundRequest) kind() tracking.ImageType {
	switch {
	case r.Text != "":
		return tracking.ImageCustomText
	case r.File != "":
		return tracking.ImageCustomFile
	default:
		return tracking.ImageContinue
	}
}

// BackgroundResult describes a regenerated background.
type BackgroundResult struct {
	ProfileName  string
	Path         string
	Kind         tracking.ImageType
	Artifact     artifact.Resolution
	PreviousPath string
	DeletedFiles []string
	Warnings     []error
}

// RegenerateBackground draws a new background for a registered profile and
// points the terminal profile at it. The previous artifact is reclaimed
// when nothing else uses it.
func (m *Manager) RegenerateBackground(ctx context.Context, req BackgroundRequest) (*BackgroundResult, error) {
	const op = cerrors.Op("manager.RegenerateBackground")
	if req.Text != "" && req.File != "" {
		return nil, cerrors.E(op, cerrors.KindValidation, "text and file are mutually exclusive")
	}
	if req.File != "" {
		if _, err := os.Stat(req.File); err != nil {
			return nil, cerrors.InvalidPath(req.File, "image file not readable")
		}
	}

	store, stale, err := m.openLiveStore()
	if err != nil {
		return nil, err
	}
	name, _ := session.NameFromProfile(req.ProfileName)
	entry, ok := store.Profile(name)
	if !ok {
		return nil, cerrors.ProfileNotFound(req.ProfileName)
	}

	path := req.Path
	if path == "" {
		path = m.cfg.DefaultBackgroundPath(name)
	}
	if !filepath.IsAbs(path) {
		return nil, cerrors.InvalidPath(path, "background path must be absolute")
	}
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return nil, cerrors.InvalidPath(path, "background must be a .png file")
	}

	sessionID := entry.OriginalSessionID
	if mm, ok := store.MappingByProfile(session.ProfileName(name)); ok {
		sessionID = mm.SessionID
	}
	log := logger.WithSession(sessionID).With("component", "Manager")

	res := &BackgroundResult{ProfileName: session.ProfileName(name), Kind: req.kind(), PreviousPath: entry.BackgroundImage, Warnings: stale}
	res.Artifact, err = claimArtifact(store, path, sessionID, req.OnConflict)
	if err != nil {
		return nil, err
	}
	res.Path = res.Artifact.Path

	src := background.Source{Kind: res.Kind, Text: req.Text, File: req.File}
	text := req.Text
	if res.Kind == tracking.ImageContinue {
		view := m.buildView(store)
		s, ok := view.Get(sessionID)
		if !ok {
			s.ID, s.ProjectPath, s.Model = sessionID, entry.ProjectPath, entry.Model
		}
		src.Info = m.infoFor(ctx, view, s, name)
		text = strings.Join(src.Info.Lines(), "\n")
	}
	if res.Kind == tracking.ImageCustomFile {
		text = req.File
	}
	drawn := m.beforeRender(res.Artifact)
	defer drawn.discard()
	if err := m.renderer.Render(src, res.Path); err != nil {
		return nil, err
	}

	pathValue := res.Path
	tr, err := m.sync.Apply(terminal.UpdateProfile{Handle: entry.ProfileHandle, BackgroundImage: &pathValue})
	var undo terminal.Intent
	switch {
	case cerrors.Is(err, cerrors.KindDanglingReference):
		// The profile is gone from the settings; keep the artifact recorded
		// and let Reconcile drop the stale registry record.
		log.Warn("profile handle missing from settings", "handle", entry.ProfileHandle)
		res.Warnings = append(res.Warnings, cerrors.DanglingHandle(name, entry.ProfileHandle))
	case err != nil:
		return nil, err
	case tr.Changed:
		previous := entry.BackgroundImage
		undo = terminal.UpdateProfile{Handle: entry.ProfileHandle, BackgroundImage: &previous}
	}

	entry.BackgroundImage = res.Path
	if err := store.UpsertProfile(entry); err != nil {
		return nil, m.undo(undo, err)
	}
	if err := store.AddBackground(tracking.BackgroundEntry{
		SessionName:    name,
		BackgroundPath: res.Path,
		TextContent:    text,
		ImageType:      res.Kind,
	}); err != nil {
		return nil, m.undo(undo, err)
	}
	if err := store.Save(); err != nil {
		return nil, m.undo(undo, err)
	}
	drawn.keep()

	if res.PreviousPath != "" && res.PreviousPath != res.Path {
		res.DeletedFiles, _ = m.reclaim(store, []string{res.PreviousPath})
	}
	log.Info("regenerated background", "profile", res.ProfileName, "kind", res.Kind, "path", res.Path, "artifact", res.Artifact.Outcome)
	return res, nil
}

// undo is undoTerminal for an optional intent.
func (m *Manager) undo(intent terminal.Intent, err error) error {
	if intent == nil {
		return err
	}
	return m.undoTerminal(intent, err)
}
