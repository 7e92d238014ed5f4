package manager

import (
	"context"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/reconcile"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// ReconcileResult is the session view plus everything repaired or noticed
// while building it.
type ReconcileResult struct {
	View              *reconcile.View
	Warnings          []error
	StaleProfiles     []tracking.ProfileEntry
	PrunedBackgrounds []tracking.BackgroundEntry
}

// Reconcile builds the session view. Registry records whose handle is gone
// from the terminal settings are treated as deleted externally and dropped,
// and background records with no live session are pruned. Storage problems
// are reported as warnings; the view is always returned.
func (m *Manager) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.ComponentLogger("Manager")

	store, err := m.openStore()
	if err != nil {
		return nil, err
	}
	res := &ReconcileResult{Warnings: store.Warnings()}

	res.StaleProfiles, err = m.dropStale(store)
	if err != nil {
		res.Warnings = append(res.Warnings, err)
	}
	for _, p := range res.StaleProfiles {
		res.Warnings = append(res.Warnings, cerrors.DanglingHandle(p.SessionName, p.ProfileHandle))
	}

	res.PrunedBackgrounds = store.PruneBackgrounds()
	for _, b := range res.PrunedBackgrounds {
		log.Info("pruned background record", "session", b.SessionName, "path", b.BackgroundPath)
	}

	if err := store.Save(); err != nil {
		res.Warnings = append(res.Warnings, err)
	}

	res.View = m.buildView(store)
	res.View.MarkRunning(m.running(ctx))
	res.Warnings = append(res.Warnings, res.View.Problems()...)
	log.Debug("reconciled", "sessions", res.View.Len(), "pending", len(res.View.Pending()), "warnings", len(res.Warnings))
	return res, nil
}
