// Package tracking owns the three JSON side-tables the menu keeps next to
// the conversation log store:
//
//	session-mapping.json      session id -> profile name, model, fork parent
//	profile-registry.json     legacy profile records with external handles
//	background-tracking.json  generated background artifacts
//
// A Store is opened at the start of one command and saved at its end; it is
// never shared between commands, so every command sees the files as they
// are on disk.
package tracking

import (
	"slices"
	"sort"
	"time"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/session"
)

// Paths locates the three tables.
type Paths struct {
	Mapping     string
	Registry    string
	Backgrounds string
}

// Store holds the three tables for the duration of one command.
type Store struct {
	paths Paths
	now   func() time.Time

	mapping     *table[MappingTable, *MappingTable]
	registry    *table[RegistryTable, *RegistryTable]
	backgrounds *table[BackgroundTable, *BackgroundTable]
}

// Open loads all three tables. Corrupt tables are quarantined and replaced
// by empty ones; see Warnings. now may be nil.
func Open(paths Paths, now func() time.Time) (*Store, error) {
	if now == nil {
		now = time.Now
	}
	s := &Store{paths: paths, now: now}

	var err error
	if s.mapping, err = loadTable[MappingTable](mappingName, paths.Mapping, now()); err != nil {
		return nil, err
	}
	if s.registry, err = loadTable[RegistryTable](registryName, paths.Registry, now()); err != nil {
		return nil, err
	}
	if s.backgrounds, err = loadTable[BackgroundTable](backgroundName, paths.Backgrounds, now()); err != nil {
		return nil, err
	}
	return s, nil
}

// Warnings returns the recoverable problems found while loading, such as
// quarantined corrupt files.
func (s *Store) Warnings() []error {
	var out []error
	for _, w := range []error{s.mapping.warning, s.registry.warning, s.backgrounds.warning} {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

// TableStatus describes one table for diagnostics.
type TableStatus struct {
	Name     string
	Path     string
	Version  int // version in memory
	OnDisk   int // version found on disk, 0 when absent or legacy
	ReadOnly bool
	Entries  int
}

// Status reports the state of each table.
func (s *Store) Status() []TableStatus {
	return []TableStatus{
		{mappingName, s.mapping.path, s.mapping.ptr().getVersion(), s.mapping.version, s.mapping.readOnly, len(s.mapping.doc.Sessions)},
		{registryName, s.registry.path, s.registry.ptr().getVersion(), s.registry.version, s.registry.readOnly, len(s.registry.doc.Profiles)},
		{backgroundName, s.backgrounds.path, s.backgrounds.ptr().getVersion(), s.backgrounds.version, s.backgrounds.readOnly, len(s.backgrounds.doc.Backgrounds)},
	}
}

// Save writes every table that changed since Open. Each file is replaced
// atomically. A changed read-only table fails the save before any file is
// written, so a command's changes land together or not at all.
func (s *Store) Save() error {
	for _, blocked := range []func() error{s.mapping.blocked, s.registry.blocked, s.backgrounds.blocked} {
		if err := blocked(); err != nil {
			return err
		}
	}
	var first error
	record := func(_ bool, err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(s.mapping.save())
	record(s.registry.save())
	record(s.backgrounds.save())
	return first
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Mappings returns a copy of the session-mapping entries.
func (s *Store) Mappings() []Mapping {
	return slices.Clone(s.mapping.doc.Sessions)
}

// Mapping looks up a session's mapping.
func (s *Store) Mapping(id string) (Mapping, bool) {
	if i := s.mappingIndex(id); i >= 0 {
		return s.mapping.doc.Sessions[i], true
	}
	return Mapping{}, false
}

// MappingByProfile looks up the mapping that owns profileName.
func (s *Store) MappingByProfile(profileName string) (Mapping, bool) {
	for _, m := range s.mapping.doc.Sessions {
		if m.ProfileName == profileName {
			return m, true
		}
	}
	return Mapping{}, false
}

func (s *Store) mappingIndex(id string) int {
	return slices.IndexFunc(s.mapping.doc.Sessions, func(m Mapping) bool { return m.SessionID == id })
}

// AddMapping inserts or updates the mapping for m.SessionID. The profile
// name must not belong to another session.
func (s *Store) AddMapping(m Mapping) error {
	if m.SessionID == "" {
		return cerrors.E(cerrors.Op("tracking.AddMapping"), cerrors.KindValidation, "session id is required")
	}
	if m.ProfileName != "" {
		if owner, ok := s.profileOwner(m.ProfileName); ok && owner != m.SessionID {
			return cerrors.DuplicateProfileName(m.ProfileName, owner)
		}
	}
	if m.Created == "" {
		m.Created = s.timestamp()
	}
	if i := s.mappingIndex(m.SessionID); i >= 0 {
		s.mapping.doc.Sessions[i] = m
		return nil
	}
	s.mapping.doc.Sessions = append(s.mapping.doc.Sessions, m)
	return nil
}

// RemoveMapping deletes a session's mapping. Children keep their fork edge
// and become dangling.
func (s *Store) RemoveMapping(id string) bool {
	i := s.mappingIndex(id)
	if i < 0 {
		return false
	}
	s.mapping.doc.Sessions = slices.Delete(s.mapping.doc.Sessions, i, i+1)
	return true
}

// RenameSession gives a tracked session a new name. The mapping keeps its
// fork edge, model and project path; the registry and background records
// follow the new name. The caller owns renaming anything outside the store.
func (s *Store) RenameSession(id, newName string) error {
	if err := session.ValidateName(newName); err != nil {
		return err
	}
	i := s.mappingIndex(id)
	if i < 0 {
		return cerrors.SessionNotFound(id)
	}

	newProfile := session.ProfileName(newName)
	if owner, ok := s.profileOwner(newProfile); ok && owner != id {
		return cerrors.DuplicateProfileName(newProfile, owner)
	}

	oldName, _ := session.NameFromProfile(s.mapping.doc.Sessions[i].ProfileName)
	s.mapping.doc.Sessions[i].ProfileName = newProfile

	if oldName == "" || oldName == newName {
		return nil
	}
	for j := range s.registry.doc.Profiles {
		if s.registry.doc.Profiles[j].SessionName == oldName {
			s.registry.doc.Profiles[j].SessionName = newName
		}
	}
	for j := range s.backgrounds.doc.Backgrounds {
		if s.backgrounds.doc.Backgrounds[j].SessionName == oldName {
			s.backgrounds.doc.Backgrounds[j].SessionName = newName
		}
	}
	return nil
}

// profileOwner returns the session that holds profileName in either table.
func (s *Store) profileOwner(profileName string) (string, bool) {
	if m, ok := s.MappingByProfile(profileName); ok {
		return m.SessionID, true
	}
	name, ok := session.NameFromProfile(profileName)
	if !ok {
		return "", false
	}
	if p, ok := s.Profile(name); ok && p.OriginalSessionID != "" {
		return p.OriginalSessionID, true
	}
	return "", false
}

// ForkParent returns the recorded parent of id.
func (s *Store) ForkParent(id string) (string, bool) {
	m, ok := s.Mapping(id)
	if !ok || m.ForkedFrom == "" {
		return "", false
	}
	return m.ForkedFrom, true
}

// Children returns the sessions forked directly from id, sorted.
func (s *Store) Children(id string) []string {
	var out []string
	for _, m := range s.mapping.doc.Sessions {
		if m.ForkedFrom == id {
			out = append(out, m.SessionID)
		}
	}
	sort.Strings(out)
	return out
}

// Lineage returns id, its ancestors and its descendants.
func (s *Store) Lineage(id string) map[string]bool {
	out := map[string]bool{id: true}

	for cur := id; ; {
		parent, ok := s.ForkParent(cur)
		if !ok || out[parent] {
			break
		}
		out[parent] = true
		cur = parent
	}

	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range s.Children(cur) {
			if !out[child] {
				out[child] = true
				queue = append(queue, child)
			}
		}
	}
	return out
}

// TrackedSessions returns every session the store knows about: all
// mappings, plus legacy registry entries that never got one.
func (s *Store) TrackedSessions() []Mapping {
	out := s.Mappings()
	known := make(map[string]bool, len(out))
	for _, m := range out {
		known[m.SessionID] = true
	}
	for _, p := range s.registry.doc.Profiles {
		if p.OriginalSessionID == "" || known[p.OriginalSessionID] {
			continue
		}
		profile := session.ProfileName(p.SessionName)
		if _, ok := s.MappingByProfile(profile); ok {
			continue
		}
		known[p.OriginalSessionID] = true
		out = append(out, Mapping{
			SessionID:   p.OriginalSessionID,
			ProfileName: profile,
			ProjectPath: p.ProjectPath,
			Model:       p.Model,
			Created:     p.Created,
		})
	}
	return out
}
