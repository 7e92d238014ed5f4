// Package manager runs the menu's commands. Each command opens the tracking
// store, reads the log store and the terminal settings fresh from disk, runs
// one mutation cycle and saves. Nothing is cached between commands.
//
// Commands that touch both the terminal settings and the tracking store
// change the settings first and save the store second. When the save fails
// the settings change is undone, so a half-finished command leaves at most a
// stale registry record that the next Reconcile repairs.
package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/claude-menu/internal/artifact"
	"github.com/zhubert/claude-menu/internal/background"
	"github.com/zhubert/claude-menu/internal/config"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/git"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/logstore"
	"github.com/zhubert/claude-menu/internal/pricing"
	"github.com/zhubert/claude-menu/internal/process"
	"github.com/zhubert/claude-menu/internal/reconcile"
	"github.com/zhubert/claude-menu/internal/session"
	"github.com/zhubert/claude-menu/internal/terminal"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// Options configures a Manager. Only Config is required.
type Options struct {
	Config       *config.Config
	Synchronizer *terminal.Synchronizer
	Renderer     background.Renderer
	Branches     git.BranchResolver
	Pricer       pricing.Pricer
	Processes    process.Finder
	Now          func() time.Time
	NewID        func() string
	ComputerUser string
}

// Manager executes commands against the configured stores.
type Manager struct {
	cfg          *config.Config
	sync         *terminal.Synchronizer
	renderer     background.Renderer
	branches     git.BranchResolver
	pricer       pricing.Pricer
	processes    process.Finder
	now          func() time.Time
	newID        func() string
	computerUser string
}

// New returns a Manager, filling unset options with the real collaborators.
func New(opts Options) (*Manager, error) {
	if opts.Config == nil {
		return nil, cerrors.E(cerrors.Op("manager.New"), cerrors.KindConfig, "a config is required")
	}
	m := &Manager{
		cfg:          opts.Config,
		sync:         opts.Synchronizer,
		renderer:     opts.Renderer,
		branches:     opts.Branches,
		pricer:       opts.Pricer,
		processes:    opts.Processes,
		now:          opts.Now,
		newID:        opts.NewID,
		computerUser: opts.ComputerUser,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.sync == nil {
		m.sync = terminal.New(m.cfg)
		m.sync.Now = m.now
	}
	if m.renderer == nil {
		r := background.NewPNGRenderer()
		r.Now = m.now
		m.renderer = r
	}
	if m.branches == nil {
		m.branches = git.NewGitService().WithTimeout(m.cfg.BranchTimeout())
	}
	if m.pricer == nil {
		m.pricer = pricing.DefaultTable()
	}
	if m.processes == nil {
		m.processes = process.NewPSFinder()
	}
	if m.computerUser == "" {
		m.computerUser = background.DefaultComputerUser()
	}
	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// LaunchPlan is how to start the conversation CLI for a session. The core
// never runs it; the caller does.
type LaunchPlan struct {
	SessionID     string
	Dir           string
	Args          []string
	Commandline   string
	ProfileName   string
	ProfileHandle string
}

func (m *Manager) openStore() (*tracking.Store, error) {
	return tracking.Open(tracking.Paths{
		Mapping:     m.cfg.MappingPath(),
		Registry:    m.cfg.RegistryPath(),
		Backgrounds: m.cfg.BackgroundTrackingPath(),
	}, m.now)
}

// dropStale removes registry records whose handle is gone from the terminal
// settings; the profile was deleted by hand. Without a settings file there
// is nothing to compare against and every record is kept. The removal is
// only persisted by the caller's Save.
func (m *Manager) dropStale(store *tracking.Store) ([]tracking.ProfileEntry, error) {
	snap, err := m.sync.Read()
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, nil
	}
	var stale []tracking.ProfileEntry
	for _, p := range store.ProfileEntries() {
		if snap.Has(p.ProfileHandle) {
			continue
		}
		store.RemoveProfile(p.SessionName)
		stale = append(stale, p)
		logger.ComponentLogger("Manager").Warn("dropped stale profile record", "session", p.SessionName, "handle", p.ProfileHandle)
	}
	return stale, nil
}

// openLiveStore opens the store with stale registry records already
// dropped, so artifact references only count profiles that still exist.
// The dropped records come back as warnings.
func (m *Manager) openLiveStore() (*tracking.Store, []error, error) {
	store, err := m.openStore()
	if err != nil {
		return nil, nil, err
	}
	stale, err := m.dropStale(store)
	if err != nil {
		// Mutations read the settings again and report the problem there.
		logger.ComponentLogger("Manager").Debug("settings unreadable, keeping registry records", "error", err)
		return store, nil, nil
	}
	var warnings []error
	for _, p := range stale {
		warnings = append(warnings, cerrors.DanglingHandle(p.SessionName, p.ProfileHandle))
	}
	return store, warnings, nil
}

// LogSessions scans the conversation log store.
func (m *Manager) LogSessions() []logstore.Session {
	r := logstore.NewReader(m.cfg.ProjectsDir())
	r.Pricer = m.pricer
	return r.All()
}

func (m *Manager) buildView(store *tracking.Store) *reconcile.View {
	return reconcile.BuildView(m.LogSessions(), store, m.now())
}

// branchOf never fails; a missing branch is an empty string.
func (m *Manager) branchOf(ctx context.Context, dir string) string {
	if dir == "" {
		return ""
	}
	branch, _ := m.branches.BranchOf(ctx, dir)
	return branch
}

// infoFor describes s for its watermark.
func (m *Manager) infoFor(ctx context.Context, view *reconcile.View, s reconcile.Session, name string) background.Info {
	info := background.Info{
		SessionName:  name,
		Directory:    s.ProjectPath,
		ComputerUser: m.computerUser,
		GitBranch:    m.branchOf(ctx, s.ProjectPath),
		Model:        s.Model,
	}
	if s.ForkedFrom != "" {
		info.ForkedFrom = view.ParentName(s)
	}
	return info
}

// label is how a session is shown to people: its name, or a short id.
func label(s reconcile.Session) string {
	if s.Unnamed() {
		return shortID(s.ID)
	}
	return s.Name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ConflictFunc answers an artifact conflict. A nil ConflictFunc reports the
// conflict as an error instead of deciding.
type ConflictFunc func(*artifact.ConflictInfo) artifact.Decision

// Always returns a ConflictFunc that gives d for every conflict.
func Always(d artifact.Decision) ConflictFunc {
	return func(*artifact.ConflictInfo) artifact.Decision { return d }
}

// claimArtifact resolves path for requester and applies decide to a
// conflict.
func claimArtifact(store *tracking.Store, path, requester string, decide ConflictFunc) (artifact.Resolution, error) {
	r := artifact.NewResolver(store)
	res := r.Resolve(path, requester)
	if res.Outcome != artifact.Conflict {
		return res, nil
	}
	if decide == nil {
		return res, res.Conflict.Err()
	}
	chosen, err := r.Choose(res, decide(res.Conflict))
	// Keep the descriptor so callers can report who else used the path.
	chosen.Conflict = res.Conflict
	return chosen, err
}

// reclaim deletes the files of artifacts that no live profile references.
// Only files under the menu's own backgrounds directory are removed; user
// paths elsewhere are reported as kept.
func (m *Manager) reclaim(store *tracking.Store, candidates []string) (deleted, kept []string) {
	log := logger.ComponentLogger("Manager")
	seen := make(map[string]bool)
	for _, path := range candidates {
		if path == "" || seen[filepath.Clean(path)] {
			continue
		}
		seen[filepath.Clean(path)] = true

		if !store.Artifact(path).Orphaned() || !within(m.cfg.BackgroundsDir(), path) {
			kept = append(kept, path)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove orphaned artifact", "path", path, "error", err)
			kept = append(kept, path)
			continue
		}
		_ = os.Remove(background.SidecarPath(path))
		// Drop the per-session directory once it is empty.
		if dir := filepath.Dir(path); dir != m.cfg.BackgroundsDir() {
			_ = os.Remove(dir)
		}
		deleted = append(deleted, path)
		log.Info("removed orphaned artifact", "path", path)
	}
	return deleted, kept
}

// rendered tracks an artifact drawn by a command that has not committed
// yet. A file that did not exist before the render, on a path not reused
// from the requester's lineage, is removed again unless keep is called.
type rendered struct {
	m    *Manager
	path string
	kept bool
}

func (m *Manager) beforeRender(res artifact.Resolution) *rendered {
	r := &rendered{m: m}
	if res.Outcome == artifact.Reuse {
		return r
	}
	if _, err := os.Stat(res.Path); errors.Is(err, os.ErrNotExist) {
		r.path = res.Path
	}
	return r
}

func (r *rendered) keep() { r.kept = true }

// discard removes the new file and its sidecar after a failed command.
func (r *rendered) discard() {
	if r.kept || r.path == "" {
		return
	}
	_ = os.Remove(r.path)
	_ = os.Remove(background.SidecarPath(r.path))
	if dir := filepath.Dir(r.path); within(r.m.cfg.BackgroundsDir(), dir) {
		_ = os.Remove(dir)
	}
	logger.ComponentLogger("Manager").Debug("removed uncommitted artifact", "path", r.path)
}

// within reports whether path lies under dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ownerOf returns the session that already holds profileName, if any.
func ownerOf(store *tracking.Store, profileName string) (string, bool) {
	if mm, ok := store.MappingByProfile(profileName); ok {
		return mm.SessionID, true
	}
	if name, ok := session.NameFromProfile(profileName); ok {
		if p, ok := store.Profile(name); ok {
			return p.OriginalSessionID, true
		}
	}
	return "", false
}

// undoTerminal applies a compensating intent after a failed save. Its own
// failure is joined onto err.
func (m *Manager) undoTerminal(intent terminal.Intent, err error) error {
	if _, undoErr := m.sync.Apply(intent); undoErr != nil {
		logger.ComponentLogger("Manager").Error("failed to undo settings change", "intent", intent.Kind(), "error", undoErr)
		return errors.Join(err, undoErr)
	}
	return err
}

// running returns the sessions a CLI process is attached to, keyed to the
// process id. A failed listing is logged and treated as none running.
func (m *Manager) running(ctx context.Context) map[string]int {
	procs, err := m.processes.Running(ctx)
	if err != nil {
		logger.ComponentLogger("Manager").Debug("process listing failed", "error", err)
		return nil
	}
	return process.SessionIDs(procs)
}
