package tracking

import (
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/session"
)

// Profile returns the registry entry for a session name.
func (s *Store) Profile(sessionName string) (ProfileEntry, bool) {
	if i := s.profileIndex(sessionName); i >= 0 {
		return s.registry.doc.Profiles[i], true
	}
	return ProfileEntry{}, false
}

func (s *Store) profileIndex(sessionName string) int {
	return slices.IndexFunc(s.registry.doc.Profiles, func(p ProfileEntry) bool { return p.SessionName == sessionName })
}

// UpsertProfile inserts or replaces the registry entry for e.SessionName.
func (s *Store) UpsertProfile(e ProfileEntry) error {
	if err := session.ValidateName(e.SessionName); err != nil {
		return err
	}
	if e.ProfileHandle == "" {
		return cerrors.E(cerrors.Op("tracking.UpsertProfile"), cerrors.KindValidation, "profile handle is required")
	}
	if owner, ok := s.profileOwner(session.ProfileName(e.SessionName)); ok && e.OriginalSessionID != "" && owner != e.OriginalSessionID {
		return cerrors.DuplicateProfileName(session.ProfileName(e.SessionName), owner)
	}
	if e.Created == "" {
		e.Created = s.timestamp()
	}
	if i := s.profileIndex(e.SessionName); i >= 0 {
		s.registry.doc.Profiles[i] = e
		return nil
	}
	s.registry.doc.Profiles = append(s.registry.doc.Profiles, e)
	return nil
}

// RemoveProfile deletes the registry entry for sessionName.
func (s *Store) RemoveProfile(sessionName string) bool {
	i := s.profileIndex(sessionName)
	if i < 0 {
		return false
	}
	s.registry.doc.Profiles = slices.Delete(s.registry.doc.Profiles, i, i+1)
	return true
}

// ProfileEntries returns a copy of the registry.
func (s *Store) ProfileEntries() []ProfileEntry {
	return slices.Clone(s.registry.doc.Profiles)
}

// Profiles returns every registry entry joined with its mapping.
func (s *Store) Profiles() []ProfileRecord {
	out := make([]ProfileRecord, 0, len(s.registry.doc.Profiles))
	for _, p := range s.registry.doc.Profiles {
		out = append(out, s.record(p))
	}
	return out
}

// ProfileForSession returns the profile claimed by a session.
func (s *Store) ProfileForSession(id string) (ProfileRecord, bool) {
	if m, ok := s.Mapping(id); ok {
		if name, ok := session.NameFromProfile(m.ProfileName); ok {
			if p, ok := s.Profile(name); ok {
				return s.record(p), true
			}
		}
	}
	for _, p := range s.registry.doc.Profiles {
		if p.OriginalSessionID == id {
			return s.record(p), true
		}
	}
	return ProfileRecord{}, false
}

func (s *Store) record(p ProfileEntry) ProfileRecord {
	profileName := session.ProfileName(p.SessionName)
	rec := ProfileRecord{
		SessionID:              p.OriginalSessionID,
		SessionName:            p.SessionName,
		ProfileName:            profileName,
		ProfileHandle:          p.ProfileHandle,
		BackgroundArtifactPath: p.BackgroundImage,
		Model:                  p.Model,
		ProjectPath:            p.ProjectPath,
		CreatedAt:              p.Created,
	}
	if m, ok := s.MappingByProfile(profileName); ok {
		rec.SessionID = m.SessionID
		if m.Model != "" {
			rec.Model = m.Model
		}
	}
	return rec
}

// Backgrounds returns a copy of the background-tracking entries.
func (s *Store) Backgrounds() []BackgroundEntry {
	return slices.Clone(s.backgrounds.doc.Backgrounds)
}

// Background returns the background record for a session name.
func (s *Store) Background(sessionName string) (BackgroundEntry, bool) {
	for _, b := range s.backgrounds.doc.Backgrounds {
		if b.SessionName == sessionName {
			return b, true
		}
	}
	return BackgroundEntry{}, false
}

// AddBackground records the artifact generated for e.SessionName, replacing
// any earlier record for that session.
func (s *Store) AddBackground(e BackgroundEntry) error {
	if e.SessionName == "" || e.BackgroundPath == "" {
		return cerrors.E(cerrors.Op("tracking.AddBackground"), cerrors.KindValidation, "session name and background path are required")
	}
	if !e.ImageType.Valid() {
		return cerrors.E(cerrors.Op("tracking.AddBackground"), cerrors.KindValidation, "unknown image type "+string(e.ImageType))
	}
	if e.Created == "" {
		e.Created = s.timestamp()
	}
	s.RemoveBackgrounds(e.SessionName)
	s.backgrounds.doc.Backgrounds = append(s.backgrounds.doc.Backgrounds, e)
	return nil
}

// RemoveBackgrounds deletes every background record for sessionName and
// returns them.
func (s *Store) RemoveBackgrounds(sessionName string) []BackgroundEntry {
	var removed []BackgroundEntry
	s.backgrounds.doc.Backgrounds = slices.DeleteFunc(s.backgrounds.doc.Backgrounds, func(b BackgroundEntry) bool {
		if b.SessionName == sessionName {
			removed = append(removed, b)
			return true
		}
		return false
	})
	return removed
}

// PruneBackgrounds removes background records whose session has neither a
// registry entry nor a mapping, and returns them.
func (s *Store) PruneBackgrounds() []BackgroundEntry {
	live := make(map[string]bool)
	for _, p := range s.registry.doc.Profiles {
		live[p.SessionName] = true
	}
	for _, m := range s.mapping.doc.Sessions {
		if name, ok := session.NameFromProfile(m.ProfileName); ok {
			live[name] = true
		}
	}

	var removed []BackgroundEntry
	s.backgrounds.doc.Backgrounds = slices.DeleteFunc(s.backgrounds.doc.Backgrounds, func(b BackgroundEntry) bool {
		if !live[b.SessionName] {
			removed = append(removed, b)
			return true
		}
		return false
	})
	return removed
}

// Artifacts returns every known artifact path with the live profiles that
// reference it, sorted by path.
func (s *Store) Artifacts() []ArtifactRecord {
	byPath := make(map[string]*ArtifactRecord)
	get := func(path string) *ArtifactRecord {
		if a, ok := byPath[path]; ok {
			return a
		}
		a := &ArtifactRecord{ArtifactPath: path}
		byPath[path] = a
		return a
	}

	for _, b := range s.backgrounds.doc.Backgrounds {
		a := get(b.BackgroundPath)
		a.SourceKind = b.ImageType
		a.TextContent = b.TextContent
	}
	for _, p := range s.registry.doc.Profiles {
		if p.BackgroundImage == "" {
			continue
		}
		a := get(p.BackgroundImage)
		a.ReferencingProfiles = append(a.ReferencingProfiles, session.ProfileName(p.SessionName))
	}

	out := make([]ArtifactRecord, 0, len(byPath))
	for _, a := range byPath {
		sort.Strings(a.ReferencingProfiles)
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArtifactPath < out[j].ArtifactPath })
	return out
}

// Artifact returns the record for one path; unknown paths are orphaned.
func (s *Store) Artifact(path string) ArtifactRecord {
	for _, a := range s.Artifacts() {
		if samePath(a.ArtifactPath, path) {
			return a
		}
	}
	return ArtifactRecord{ArtifactPath: path}
}

// Referencing returns the live profile records whose artifact is path.
func (s *Store) Referencing(path string) []ProfileRecord {
	var out []ProfileRecord
	for _, p := range s.Profiles() {
		if p.BackgroundArtifactPath != "" && samePath(p.BackgroundArtifactPath, path) {
			out = append(out, p)
		}
	}
	return out
}

// samePath compares artifact paths after cleaning. Windows paths compare
// case-insensitively.
func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
