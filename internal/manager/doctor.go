package manager

import (
	"context"
	"os"

	"github.com/zhubert/claude-menu/internal/config"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// Diagnosis reports where everything lives and what state it is in.
type Diagnosis struct {
	ConfigPath       string
	ClaudePath       string
	ClaudeCandidates []config.ClaudeCandidate
	ProjectsDir      string
	ProjectsDirFound bool
	SettingsPath     string
	SettingsFound    bool
	SettingsProfiles int
	SettingsError    error
	BackgroundsDir   string
	BackupsDir       string
	LogPath          string
	Tables           []tracking.TableStatus
	Warnings         []error
	LogSessions      int
	InvalidLogs      int
	Artifacts        []tracking.ArtifactRecord
}

// Diagnose gathers a Diagnosis. It never saves, though opening the store
// still quarantines a corrupt table.
func (m *Manager) Diagnose(ctx context.Context) (*Diagnosis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := &Diagnosis{
		ConfigPath:     m.cfg.FilePath(),
		ClaudePath:     m.cfg.ClaudePath,
		ProjectsDir:    m.cfg.ProjectsDir(),
		SettingsPath:   m.sync.Path,
		BackgroundsDir: m.cfg.BackgroundsDir(),
		BackupsDir:     m.cfg.BackupsDir(),
		LogPath:        m.cfg.LogPath(),
	}
	if home, err := os.UserHomeDir(); err == nil {
		d.ClaudeCandidates = config.ClaudeCandidates(home)
	}
	if info, err := os.Stat(d.ProjectsDir); err == nil && info.IsDir() {
		d.ProjectsDirFound = true
	}

	snap, err := m.sync.Read()
	if err != nil {
		d.SettingsError = err
	} else {
		d.SettingsFound = snap.Exists
		d.SettingsProfiles = len(snap.Profiles)
	}

	store, err := m.openStore()
	if err != nil {
		return nil, err
	}
	d.Tables = store.Status()
	d.Warnings = store.Warnings()
	d.Artifacts = store.Artifacts()

	for _, s := range m.LogSessions() {
		d.LogSessions++
		if !s.Valid {
			d.InvalidLogs++
		}
	}
	return d, nil
}
