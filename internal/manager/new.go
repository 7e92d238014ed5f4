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

// NewSessionRequest names a conversation that does not exist yet.
type NewSessionRequest struct {
	Name       string
	Dir        string
	Model      string
	OnConflict ConflictFunc
}

// NewSessionResult describes the session NewSession recorded.
type NewSessionResult struct {
	SessionID      string
	ProfileName    string
	ProfileHandle  string
	BackgroundPath string
	Artifact       artifact.Resolution
	Launch         LaunchPlan
	Warnings       []error
}

// NewSession records a named session in req.Dir with no fork parent,
// creates its terminal profile and renders its background. Like a fork it
// stays pending until the CLI writes its first log line.
func (m *Manager) NewSession(ctx context.Context, req NewSessionRequest) (*NewSessionResult, error) {
	const op = cerrors.Op("manager.NewSession")
	if err := session.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if err := session.ValidateModel(req.Model); err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(req.Dir)
	if err != nil {
		return nil, cerrors.InvalidPath(req.Dir, err.Error())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, cerrors.E(op, cerrors.KindValidation, "directory does not exist: "+dir)
	}

	store, stale, err := m.openLiveStore()
	if err != nil {
		return nil, err
	}
	profileName := session.ProfileName(req.Name)
	if owner, ok := ownerOf(store, profileName); ok {
		return nil, cerrors.DuplicateProfileName(profileName, owner)
	}

	newID := m.newID()
	log := logger.WithSession(newID).With("component", "Manager")
	if err := store.AddMapping(tracking.Mapping{
		SessionID:   newID,
		ProfileName: profileName,
		ProjectPath: dir,
		Model:       req.Model,
	}); err != nil {
		return nil, err
	}

	res := &NewSessionResult{SessionID: newID, ProfileName: profileName, Warnings: stale}
	res.Artifact, err = claimArtifact(store, m.cfg.DefaultBackgroundPath(req.Name), newID, req.OnConflict)
	if err != nil {
		return nil, err
	}
	drawn := m.beforeRender(res.Artifact)
	defer drawn.discard()

	info := background.Info{
		SessionName:  req.Name,
		Directory:    dir,
		ComputerUser: m.computerUser,
		GitBranch:    m.branchOf(ctx, dir),
		Model:        req.Model,
	}
	if err := m.renderer.Render(background.Source{Kind: tracking.ImageContinue, Info: info}, res.Artifact.Path); err != nil {
		log.Warn("background render failed", "path", res.Artifact.Path, "error", err)
		res.Warnings = append(res.Warnings, err)
	} else {
		res.BackgroundPath = res.Artifact.Path
	}

	tr, err := m.sync.Apply(terminal.CreateProfile{
		Handle:            terminal.NewHandle(),
		Name:              profileName,
		SessionID:         newID,
		StartingDirectory: dir,
		Commandline:       session.Commandline(session.ResumeArgs(newID)),
		BackgroundImage:   res.BackgroundPath,
	})
	if err != nil {
		return nil, err
	}
	res.ProfileHandle = tr.Handle
	undo := terminal.DeleteProfile{Handle: res.ProfileHandle}

	if err := store.UpsertProfile(tracking.ProfileEntry{
		SessionName:       req.Name,
		ProfileHandle:     res.ProfileHandle,
		OriginalSessionID: newID,
		ProjectPath:       dir,
		BackgroundImage:   res.BackgroundPath,
		Model:             req.Model,
	}); err != nil {
		return nil, m.undoTerminal(undo, err)
	}
	if res.BackgroundPath != "" {
		if err := store.AddBackground(tracking.BackgroundEntry{
			SessionName:    req.Name,
			BackgroundPath: res.BackgroundPath,
			TextContent:    strings.Join(info.Lines(), "\n"),
			ImageType:      tracking.ImageContinue,
		}); err != nil {
			return nil, m.undoTerminal(undo, err)
		}
	}
	if err := store.Save(); err != nil {
		return nil, m.undoTerminal(undo, err)
	}
	drawn.keep()

	args := session.NewArgs(newID, req.Model)
	res.Launch = LaunchPlan{
		SessionID:     newID,
		Dir:           dir,
		Args:          args,
		Commandline:   session.Commandline(args),
		ProfileName:   profileName,
		ProfileHandle: res.ProfileHandle,
	}
	log.Info("created session", "dir", dir, "profile", profileName, "handle", res.ProfileHandle)
	return res, nil
}
