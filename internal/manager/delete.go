package manager

import (
	"context"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/session"
	"github.com/zhubert/claude-menu/internal/terminal"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// CleanupReport lists what Delete removed, what it could not find, and what
// it left dangling. Conversation logs are never touched.
type CleanupReport struct {
	SessionID   string
	ProfileName string

	RemovedMapping     bool
	RemovedProfile     bool
	RemovedHandle      string
	MissingHandle      string // recorded handle already absent from the settings
	RemovedBackgrounds []tracking.BackgroundEntry
	DeletedFiles       []string
	KeptArtifacts      []string // still referenced, or outside the backgrounds directory
	OrphanedChildren   []string // forks whose parent edge now dangles
	Warnings           []error
}

// Delete removes everything the menu tracks for id: the terminal profile,
// the mapping, the registry record and background records, then reclaims
// background files nothing references any more. Deleting an id the store
// does not know is KindNotFound, so a second Delete changes nothing.
func (m *Manager) Delete(ctx context.Context, id string) (*CleanupReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store, err := m.openStore()
	if err != nil {
		return nil, err
	}

	mapping, hasMapping := store.Mapping(id)
	rec, hasProfile := store.ProfileForSession(id)
	if !hasMapping && !hasProfile {
		return nil, cerrors.SessionNotFound(id)
	}

	log := logger.WithSession(id).With("component", "Manager")
	report := &CleanupReport{SessionID: id, ProfileName: mapping.ProfileName}
	name, _ := session.NameFromProfile(mapping.ProfileName)
	if hasProfile {
		report.ProfileName = rec.ProfileName
		name = rec.SessionName
	}

	// The settings change comes first: if it fails nothing has been
	// removed from the store and the command can simply be retried.
	if hasProfile && rec.ProfileHandle != "" {
		tr, err := m.sync.Apply(terminal.DeleteProfile{Handle: rec.ProfileHandle})
		if err != nil {
			return nil, err
		}
		if tr.Changed {
			report.RemovedHandle = rec.ProfileHandle
		} else {
			report.MissingHandle = rec.ProfileHandle
			report.Warnings = append(report.Warnings, cerrors.DanglingHandle(name, rec.ProfileHandle))
		}
	}

	report.OrphanedChildren = store.Children(id)
	for _, child := range report.OrphanedChildren {
		report.Warnings = append(report.Warnings, cerrors.DanglingParent(child, id))
	}
	if pid, ok := m.running(ctx)[id]; ok {
		report.Warnings = append(report.Warnings, cerrors.SessionRunning(id, pid))
	}

	candidates := []string{rec.BackgroundArtifactPath}
	report.RemovedMapping = store.RemoveMapping(id)
	if hasProfile {
		report.RemovedProfile = store.RemoveProfile(rec.SessionName)
	}
	if name != "" {
		report.RemovedBackgrounds = store.RemoveBackgrounds(name)
		for _, b := range report.RemovedBackgrounds {
			candidates = append(candidates, b.BackgroundPath)
		}
	}

	if err := store.Save(); err != nil {
		// The profile is already gone from the settings; the registry
		// record left behind is dropped as stale by the next Reconcile.
		return report, err
	}

	report.DeletedFiles, report.KeptArtifacts = m.reclaim(store, candidates)
	log.Info("deleted session", "profile", report.ProfileName, "handle", rec.ProfileHandle,
		"files", len(report.DeletedFiles), "orphanedChildren", len(report.OrphanedChildren))
	return report, nil
}
