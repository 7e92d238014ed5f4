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

// ForkRequest names the new session. An empty Model inherits the parent's.
type ForkRequest struct {
	ParentID   string
	Name       string
	Model      string
	OnConflict ConflictFunc
}

// ForkResult describes the session a fork created.
type ForkResult struct {
	SessionID      string
	ProfileName    string
	ProfileHandle  string
	BackgroundPath string
	Artifact       artifact.Resolution
	Launch         LaunchPlan
	Warnings       []error
}

// Fork records a new session forked from req.ParentID, creates its terminal
// profile and renders its background. The new session stays pending until
// the CLI writes its first log line.
func (m *Manager) Fork(ctx context.Context, req ForkRequest) (*ForkResult, error) {
	if err := session.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if err := session.ValidateModel(req.Model); err != nil {
		return nil, err
	}

	store, stale, err := m.openLiveStore()
	if err != nil {
		return nil, err
	}
	view := m.buildView(store)
	parent, ok := view.Get(req.ParentID)
	if !ok {
		return nil, cerrors.SessionNotFound(req.ParentID)
	}

	profileName := session.ProfileName(req.Name)
	if owner, ok := ownerOf(store, profileName); ok {
		return nil, cerrors.DuplicateProfileName(profileName, owner)
	}

	newID := m.newID()
	log := logger.WithSession(newID).With("component", "Manager")
	model := req.Model
	if model == "" {
		model = parent.Model
	}

	// The mapping goes in first so the resolver sees the new lineage.
	if err := store.AddMapping(tracking.Mapping{
		SessionID:   newID,
		ProfileName: profileName,
		ProjectPath: parent.ProjectPath,
		Model:       model,
		ForkedFrom:  parent.ID,
	}); err != nil {
		return nil, err
	}

	res := &ForkResult{SessionID: newID, ProfileName: profileName, Warnings: stale}
	res.Artifact, err = claimArtifact(store, m.cfg.DefaultBackgroundPath(req.Name), newID, req.OnConflict)
	if err != nil {
		return nil, err
	}

	drawn := m.beforeRender(res.Artifact)
	defer drawn.discard()

	info := background.Info{
		SessionName:  req.Name,
		Directory:    parent.ProjectPath,
		ComputerUser: m.computerUser,
		ForkedFrom:   label(parent),
		GitBranch:    m.branchOf(ctx, parent.ProjectPath),
		Model:        model,
	}
	if err := m.renderer.Render(background.Source{Kind: tracking.ImageFork, Info: info}, res.Artifact.Path); err != nil {
		// A session without a background still works.
		log.Warn("background render failed", "path", res.Artifact.Path, "error", err)
		res.Warnings = append(res.Warnings, err)
	} else {
		res.BackgroundPath = res.Artifact.Path
	}

	resumeLine := session.Commandline(session.ResumeArgs(newID))
	tr, err := m.sync.Apply(terminal.CreateProfile{
		Handle:            terminal.NewHandle(),
		Name:              profileName,
		SessionID:         newID,
		StartingDirectory: parent.ProjectPath,
		Commandline:       resumeLine,
		BackgroundImage:   res.BackgroundPath,
	})
	if err != nil {
		return nil, err
	}
	res.ProfileHandle = tr.Handle

	if err := store.UpsertProfile(tracking.ProfileEntry{
		SessionName:       req.Name,
		ProfileHandle:     res.ProfileHandle,
		OriginalSessionID: newID,
		ProjectPath:       parent.ProjectPath,
		BackgroundImage:   res.BackgroundPath,
		Model:             model,
	}); err != nil {
		return nil, m.undoTerminal(terminal.DeleteProfile{Handle: res.ProfileHandle}, err)
	}
	if res.BackgroundPath != "" {
		if err := store.AddBackground(tracking.BackgroundEntry{
			SessionName:    req.Name,
			BackgroundPath: res.BackgroundPath,
			TextContent:    strings.Join(info.Lines(), "\n"),
			ImageType:      tracking.ImageFork,
		}); err != nil {
			return nil, m.undoTerminal(terminal.DeleteProfile{Handle: res.ProfileHandle}, err)
		}
	}
	if err := store.Save(); err != nil {
		return nil, m.undoTerminal(terminal.DeleteProfile{Handle: res.ProfileHandle}, err)
	}
	drawn.keep()

	args := session.ForkArgs(parent.ID, newID, req.Model)
	res.Launch = LaunchPlan{
		SessionID:     newID,
		Dir:           parent.ProjectPath,
		Args:          args,
		Commandline:   session.Commandline(args),
		ProfileName:   profileName,
		ProfileHandle: res.ProfileHandle,
	}
	log.Info("forked session", "parent", parent.ID, "profile", profileName, "handle", res.ProfileHandle, "artifact", res.Artifact.Outcome)
	return res, nil
}
