// Package terminal keeps the terminal emulator's settings file in step with
// the tracking store. The file belongs to another application: every change
// is one scoped cycle that backs the file up, validates it, patches only the
// fields this package owns, writes it back, and restores the backup if
// anything goes wrong.
package terminal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zhubert/claude-menu/internal/config"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/fsx"
	"github.com/zhubert/claude-menu/internal/logger"
)

// DefaultKeepBackups is how many settings backups are retained.
const DefaultKeepBackups = 20

// Synchronizer applies intents to the settings file at Path.
type Synchronizer struct {
	Path        string
	BackupDir   string
	KeepBackups int
	Opacity     float64
	BaseProfile string
	Now         func() time.Time

	// Hook runs on entry to each of BackupTaken, Validated, Mutated and
	// WrittenBack. A non-nil error fails the cycle at that point.
	Hook func(State) error
}

// New returns a Synchronizer configured from cfg.
func New(cfg *config.Config) *Synchronizer {
	return &Synchronizer{
		Path:        cfg.TerminalSettingsPath,
		BackupDir:   cfg.BackupsDir(),
		KeepBackups: DefaultKeepBackups,
		Opacity:     cfg.BackgroundOpacity,
		BaseProfile: cfg.BaseProfileName,
	}
}

// Result describes one cycle.
type Result struct {
	History    []State
	Changed    bool
	Handle     string
	BackupPath string
	Reason     string // set when the cycle failed
}

// Final returns the last state reached before returning to Idle.
func (r *Result) Final() State {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i] != StateIdle {
			return r.History[i]
		}
	}
	return StateIdle
}

func (s *Synchronizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Synchronizer) opacity() float64 {
	return s.Opacity
}

func (s *Synchronizer) baseName() string {
	if s.BaseProfile == "" {
		return config.DefaultBaseProfileName
	}
	return s.BaseProfile
}

func (s *Synchronizer) backupDir() string {
	if s.BackupDir == "" {
		return filepath.Join(filepath.Dir(s.Path), "backups")
	}
	return s.BackupDir
}

// cycle is the state of one Apply call.
type cycle struct {
	s      *Synchronizer
	intent Intent
	res    *Result

	missing  bool // settings file did not exist
	original []byte
	mode     os.FileMode
	doc      *document
	out      []byte
	written  bool
	err      error
}

// Apply runs one read-modify-write cycle for intent. On failure the
// settings file is left exactly as it was before the call.
func (s *Synchronizer) Apply(intent Intent) (*Result, error) {
	c := &cycle{s: s, intent: intent, res: &Result{}, mode: 0o644}
	log := logger.ComponentLogger("Terminal")

	state := StateIdle
	c.res.History = append(c.res.History, state)
	for {
		next := c.transition(state)
		c.res.History = append(c.res.History, next)
		log.Debug("transition", "intent", intent.Kind(), "from", state, "to", next)
		if next == StateIdle {
			break
		}
		state = next
	}

	if c.err != nil {
		log.Error("settings update failed", "intent", intent.Kind(), "path", s.Path, "reason", c.res.Reason, "error", c.err)
		return c.res, c.err
	}
	if c.res.Changed {
		log.Info("settings updated", "intent", intent.Kind(), "handle", c.res.Handle, "backup", c.res.BackupPath)
	}
	return c.res, nil
}

// transition performs the work of leaving from and returns the next state.
func (c *cycle) transition(from State) State {
	switch from {
	case StateIdle:
		return c.takeBackup()
	case StateBackupTaken:
		return c.validate()
	case StateValidated:
		return c.mutate()
	case StateMutated:
		if !c.res.Changed {
			return StateIdle
		}
		return c.writeBack()
	case StateWrittenBack:
		c.s.pruneBackups()
		return StateIdle
	case StateFailed:
		return c.restore()
	default:
		return StateIdle
	}
}

// enter runs the hook for state and fails the cycle if it objects.
func (c *cycle) enter(state State, reason string) State {
	if c.s.Hook != nil {
		if err := c.s.Hook(state); err != nil {
			return c.fail(reason, err)
		}
	}
	return state
}

func (c *cycle) fail(reason string, err error) State {
	c.res.Reason = reason
	c.err = err
	return StateFailed
}

func (c *cycle) takeBackup() State {
	info, err := os.Stat(c.s.Path)
	if errors.Is(err, os.ErrNotExist) {
		// Nothing to protect; a failed cycle removes whatever it created.
		c.missing = true
		c.original = []byte("{}")
		return c.enter(StateBackupTaken, ReasonBackupFailed)
	}
	if err != nil {
		return c.fail(ReasonBackupFailed, cerrors.E(cerrors.Op("terminal.Backup"), cerrors.KindIO, c.s.Path, err))
	}
	c.mode = info.Mode().Perm()

	backup, err := fsx.Backup(c.s.Path, c.s.backupDir(), c.s.now())
	if err != nil {
		return c.fail(ReasonBackupFailed, cerrors.E(cerrors.Op("terminal.Backup"), cerrors.KindIO, c.s.Path, err))
	}
	c.res.BackupPath = backup

	// Work from the backed-up bytes so a restore reproduces exactly what was
	// validated.
	if c.original, err = os.ReadFile(backup); err != nil {
		return c.fail(ReasonBackupFailed, cerrors.E(cerrors.Op("terminal.Backup"), cerrors.KindIO, backup, err))
	}
	return c.enter(StateBackupTaken, ReasonBackupFailed)
}

func (c *cycle) validate() State {
	doc, err := parseDocument(c.original)
	if err != nil {
		return c.fail(ReasonCorruptSource, cerrors.ExternalConfigCorrupt(c.s.Path, ReasonCorruptSource+": "+err.Error()))
	}
	c.doc = doc
	return c.enter(StateValidated, ReasonCorruptSource)
}

func (c *cycle) mutate() State {
	handle, err := c.intent.apply(c.doc, c.s)
	if err != nil {
		return c.fail(ReasonMutateFailed, err)
	}
	c.res.Handle = handle
	if c.out, err = c.doc.encode(); err != nil {
		return c.fail(ReasonMutateFailed, err)
	}
	c.res.Changed = !bytes.Equal(c.out, c.original)
	if c.res.Changed {
		if _, err := parseDocument(c.out); err != nil {
			return c.fail(ReasonMutateFailed, fmt.Errorf("patched settings are invalid: %w", err))
		}
	}
	return c.enter(StateMutated, ReasonMutateFailed)
}

func (c *cycle) writeBack() State {
	c.written = true
	if err := fsx.WriteFileAtomic(c.s.Path, c.out, c.mode); err != nil {
		return c.fail(ReasonWriteFailed, cerrors.E(cerrors.Op("terminal.Write"), cerrors.KindIO, c.s.Path, err))
	}
	return c.enter(StateWrittenBack, ReasonWriteFailed)
}

// restore puts the pre-cycle bytes back. Failures before anything was
// written have nothing to undo.
func (c *cycle) restore() State {
	if !c.written {
		if c.res.BackupPath == "" {
			return StateIdle
		}
		return StateRestoredFromBackup
	}

	log := logger.ComponentLogger("Terminal")
	var err error
	if c.missing {
		err = os.Remove(c.s.Path)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
	} else {
		err = fsx.Restore(c.res.BackupPath, c.s.Path)
	}
	if err != nil {
		log.Error("failed to restore settings backup", "path", c.s.Path, "backup", c.res.BackupPath, "error", err)
		c.err = errors.Join(c.err, fmt.Errorf("restore %s from %s: %w", c.s.Path, c.res.BackupPath, err))
		return StateIdle
	}
	log.Warn("restored settings from backup", "path", c.s.Path, "backup", c.res.BackupPath)
	return StateRestoredFromBackup
}

// pruneBackups keeps the newest KeepBackups backups of the settings file.
func (s *Synchronizer) pruneBackups() {
	if s.KeepBackups <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(s.backupDir(), filepath.Base(s.Path)+".*.bak"))
	if err != nil || len(matches) <= s.KeepBackups {
		return
	}
	// Stamps sort lexically in time order.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-s.KeepBackups] {
		if err := os.Remove(old); err != nil {
			logger.ComponentLogger("Terminal").Warn("failed to prune settings backup", "path", old, "error", err)
		}
	}
}
