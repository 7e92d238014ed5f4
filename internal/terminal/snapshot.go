package terminal

import (
	"errors"
	"os"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
)

// Profile is the part of a settings entity the menu cares about.
type Profile struct {
	Handle          string
	Name            string
	SessionID       string
	BackgroundImage string
	Hidden          bool
}

// Snapshot is a read-only view of the settings file.
type Snapshot struct {
	Exists   bool
	Profiles []Profile
}

// Has reports whether a profile with handle exists.
func (s *Snapshot) Has(handle string) bool {
	_, ok := s.ByHandle(handle)
	return ok
}

// ByHandle finds a profile by handle.
func (s *Snapshot) ByHandle(handle string) (Profile, bool) {
	for _, p := range s.Profiles {
		if sameHandle(p.Handle, handle) {
			return p, true
		}
	}
	return Profile{}, false
}

// ByName finds the first profile named name.
func (s *Snapshot) ByName(name string) (Profile, bool) {
	for _, p := range s.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Read parses the settings file without backing it up or writing it. A
// missing file is an empty snapshot.
func (s *Synchronizer) Read() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, cerrors.E(cerrors.Op("terminal.Read"), cerrors.KindIO, s.Path, err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, cerrors.ExternalConfigCorrupt(s.Path, ReasonCorruptSource+": "+err.Error())
	}

	snap := &Snapshot{Exists: true}
	for _, p := range doc.list() {
		snap.Profiles = append(snap.Profiles, Profile{
			Handle:          p.Get(fieldHandle).String(),
			Name:            p.Get(fieldName).String(),
			SessionID:       sessionOf(p),
			BackgroundImage: p.Get(fieldBackground).String(),
			Hidden:          p.Get(fieldHidden).Bool(),
		})
	}
	return snap, nil
}
