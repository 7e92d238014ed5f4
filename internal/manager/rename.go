package manager

import (
	"context"
	"strings"

	"github.com/zhubert/claude-menu/internal/artifact"
	"github.com/zhubert/claude-menu/internal/background"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/session"
	"github.com/zhubert/claude-menu/internal/terminal"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// RenameResult describes a renamed session.
type RenameResult struct {
	SessionID      string
	OldName        string // empty when the session was unnamed
	NewName        string
	ProfileName    string
	ProfileHandle  string
	BackgroundPath string
	DeletedFiles   []string
	Warnings       []error
}

// RenameSession gives id a new name. Tracked sessions keep their fork edge,
// model and project path; an untracked log session is claimed with a new
// mapping and profile. Generated backgrounds are redrawn under the new name
// and the old file is reclaimed; custom backgrounds are kept as they are.
func (m *Manager) RenameSession(ctx context.Context, id, newName string) (*RenameResult, error) {
	if err := session.ValidateName(newName); err != nil {
		return nil, err
	}
	store, stale, err := m.openLiveStore()
	if err != nil {
		return nil, err
	}
	view := m.buildView(store)
	s, ok := view.Get(id)
	if !ok {
		return nil, cerrors.SessionNotFound(id)
	}

	newProfile := session.ProfileName(newName)
	if owner, ok := ownerOf(store, newProfile); ok && owner != id {
		return nil, cerrors.DuplicateProfileName(newProfile, owner)
	}

	log := logger.WithSession(id).With("component", "Manager")
	res := &RenameResult{SessionID: id, NewName: newName, ProfileName: newProfile, Warnings: stale}
	if !s.Unnamed() {
		res.OldName = s.Name
	}

	rec, hasProfile := store.ProfileForSession(id)
	if _, tracked := store.Mapping(id); !tracked {
		// Legacy registry sessions get a mapping so the rename has something
		// to carry; untracked sessions are claimed under the new name.
		claim := tracking.Mapping{
			SessionID:   id,
			ProfileName: newProfile,
			ProjectPath: s.ProjectPath,
			Model:       s.Model,
		}
		if hasProfile {
			claim.ProfileName = rec.ProfileName
			claim.Created = rec.CreatedAt
		}
		if err := store.AddMapping(claim); err != nil {
			return nil, err
		}
	}
	if err := store.RenameSession(id, newName); err != nil {
		return nil, err
	}

	// Generated backgrounds carry the name, so they are redrawn; custom
	// ones are left alone.
	oldPath := rec.BackgroundArtifactPath
	var drawn *rendered
	res.BackgroundPath = oldPath
	bg, hasBG := store.Background(newName)
	if !hasBG || bg.ImageType == tracking.ImageFork || bg.ImageType == tracking.ImageContinue {
		kind := tracking.ImageContinue
		if s.ForkedFrom != "" {
			kind = tracking.ImageFork
		}
		info := m.infoFor(ctx, view, s, newName)
		claimed, err := claimArtifact(store, m.cfg.DefaultBackgroundPath(newName), id, Always(artifact.DecideRename))
		if err != nil {
			return nil, err
		}
		drawn = m.beforeRender(claimed)
		defer drawn.discard()
		if err := m.renderer.Render(background.Source{Kind: kind, Info: info}, claimed.Path); err != nil {
			log.Warn("background render failed", "path", claimed.Path, "error", err)
			res.Warnings = append(res.Warnings, err)
		} else {
			res.BackgroundPath = claimed.Path
			if err := store.AddBackground(tracking.BackgroundEntry{
				SessionName:    newName,
				BackgroundPath: claimed.Path,
				TextContent:    strings.Join(info.Lines(), "\n"),
				ImageType:      kind,
			}); err != nil {
				return nil, err
			}
		}
	}

	var undo terminal.Intent
	if hasProfile && rec.ProfileHandle != "" {
		oldProfile := rec.ProfileName
		_, err := m.sync.Apply(terminal.UpdateProfile{
			Handle:          rec.ProfileHandle,
			Name:            &newProfile,
			BackgroundImage: optional(res.BackgroundPath),
		})
		switch {
		case cerrors.Is(err, cerrors.KindDanglingReference):
			log.Warn("profile handle missing from settings, creating a new profile", "handle", rec.ProfileHandle)
			res.Warnings = append(res.Warnings, cerrors.DanglingHandle(rec.SessionName, rec.ProfileHandle))
		case err != nil:
			return nil, err
		default:
			res.ProfileHandle = rec.ProfileHandle
			undo = terminal.UpdateProfile{Handle: rec.ProfileHandle, Name: &oldProfile, BackgroundImage: optional(oldPath)}
		}
	}
	if res.ProfileHandle == "" {
		tr, err := m.sync.Apply(terminal.CreateProfile{
			Handle:            terminal.NewHandle(),
			Name:              newProfile,
			SessionID:         id,
			StartingDirectory: s.ProjectPath,
			Commandline:       session.Commandline(session.ResumeArgs(id)),
			BackgroundImage:   res.BackgroundPath,
		})
		if err != nil {
			return nil, err
		}
		res.ProfileHandle = tr.Handle
		undo = terminal.DeleteProfile{Handle: tr.Handle}
	}

	entry := tracking.ProfileEntry{
		SessionName:       newName,
		ProfileHandle:     res.ProfileHandle,
		OriginalSessionID: id,
		ProjectPath:       s.ProjectPath,
		BackgroundImage:   res.BackgroundPath,
		Model:             s.Model,
	}
	if moved, ok := store.Profile(newName); ok {
		entry.Created = moved.Created
		if moved.ProjectPath != "" {
			entry.ProjectPath = moved.ProjectPath
		}
	}
	if err := store.UpsertProfile(entry); err != nil {
		return nil, m.undo(undo, err)
	}
	if err := store.Save(); err != nil {
		return nil, m.undo(undo, err)
	}
	if drawn != nil {
		drawn.keep()
	}

	if oldPath != "" && oldPath != res.BackgroundPath {
		res.DeletedFiles, _ = m.reclaim(store, []string{oldPath})
	}
	log.Info("renamed session", "from", res.OldName, "to", newName, "handle", res.ProfileHandle)
	return res, nil
}

// optional returns nil for an empty value so the field is left alone.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
