// Package artifact decides what to do when a background image path is
// requested: reclaim it, share it within a fork lineage, or ask the caller
// because unrelated sessions already use it.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// maxRenameAttempts bounds the numeric suffix search.
const maxRenameAttempts = 10000

// Outcome is the resolver's answer for a path.
type Outcome int

const (
	// Overwrite: the path is unreferenced, or the caller chose to clobber it.
	Overwrite Outcome = iota
	// Reuse: every reference belongs to the requester's own lineage.
	Reuse
	// Conflict: unrelated sessions reference the path; the caller decides.
	Conflict
	// Rename: a fresh unreferenced path was chosen.
	Rename
)

func (o Outcome) String() string {
	switch o {
	case Overwrite:
		return "overwrite"
	case Reuse:
		return "reuse"
	case Conflict:
		return "conflict"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Decision is the caller's answer to a conflict.
type Decision int

const (
	DecideAbort Decision = iota
	DecideOverwrite
	DecideRename
)

// ParseDecision maps a flag value to a Decision. An empty value aborts.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return DecideAbort, nil
	case "overwrite":
		return DecideOverwrite, nil
	case "rename":
		return DecideRename, nil
	}
	return DecideAbort, cerrors.E(cerrors.Op("artifact.ParseDecision"), cerrors.KindValidation, fmt.Sprintf("unknown conflict decision %q (want overwrite, rename or abort)", s))
}

// Ref is one live profile using an artifact.
type Ref struct {
	ProfileName string
	SessionID   string
}

// ConflictInfo describes who else uses a path.
type ConflictInfo struct {
	Path       string
	UsageCount int
	Profiles   []string
}

// Err returns the conflict as a typed error.
func (c *ConflictInfo) Err() error {
	return cerrors.ArtifactConflict(c.Path, c.Profiles)
}

// Resolution is the outcome for a requested path.
type Resolution struct {
	Outcome   Outcome
	Requested string
	Path      string // path to write; equals Requested unless renamed
	Requester string
	Conflict  *ConflictInfo
}

// Resolver answers path requests from reference data.
type Resolver struct {
	Refs    func(path string) []Ref
	Lineage func(sessionID string) map[string]bool
	Exists  func(path string) bool
}

// NewResolver builds a Resolver over a tracking store.
func NewResolver(store *tracking.Store) *Resolver {
	return &Resolver{
		Refs: func(path string) []Ref {
			var refs []Ref
			for _, p := range store.Referencing(path) {
				refs = append(refs, Ref{ProfileName: p.ProfileName, SessionID: p.SessionID})
			}
			return refs
		},
		Lineage: store.Lineage,
		Exists:  fileExists,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

// Resolve classifies path for requester.
func (r *Resolver) Resolve(path, requester string) Resolution {
	res := Resolution{Requested: path, Path: path, Requester: requester}
	refs := r.Refs(path)
	if len(refs) == 0 {
		res.Outcome = Overwrite
		return res
	}

	lineage := r.Lineage(requester)
	related := true
	for _, ref := range refs {
		if ref.SessionID == "" || !lineage[ref.SessionID] {
			related = false
			break
		}
	}
	if related {
		res.Outcome = Reuse
		return res
	}

	profiles := make([]string, 0, len(refs))
	for _, ref := range refs {
		profiles = append(profiles, ref.ProfileName)
	}
	sort.Strings(profiles)
	res.Outcome = Conflict
	res.Conflict = &ConflictInfo{Path: path, UsageCount: len(refs), Profiles: profiles}

	logger.ComponentLogger("Artifact").Info("artifact conflict", "path", path, "requester", requester, "profiles", profiles)
	return res
}

// Choose applies the caller's decision to a conflicting resolution. Other
// outcomes are returned unchanged.
func (r *Resolver) Choose(res Resolution, d Decision) (Resolution, error) {
	if res.Outcome != Conflict {
		return res, nil
	}
	switch d {
	case DecideOverwrite:
		res.Outcome = Overwrite
		return res, nil
	case DecideRename:
		path, err := r.freePath(res.Requested)
		if err != nil {
			return res, err
		}
		res.Outcome = Rename
		res.Path = path
		return res, nil
	default:
		return res, cerrors.OperationAborted("artifact.Choose")
	}
}

// freePath finds base-N.ext, N >= 2, with no references and no file.
func (r *Resolver) freePath(requested string) (string, error) {
	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(requested, ext)
	for n := 2; n < maxRenameAttempts; n++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if len(r.Refs(candidate)) == 0 && !r.Exists(candidate) {
			return candidate, nil
		}
	}
	return "", cerrors.E(cerrors.Op("artifact.Rename"), cerrors.KindConflict, "no free name for "+requested)
}
