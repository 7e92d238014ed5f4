// Package errors provides structured error types for claude-menu.
// Every failure the core reports carries the operation that failed and a
// Kind from the error taxonomy, so callers can branch on the category
// instead of matching strings.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Op describes an operation, usually as "package.function".
type Op string

// Kind categorizes the type of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindCorruptStore
	KindExternalConfigCorrupt
	KindDuplicateName
	KindDanglingReference
	KindValidation
	KindIO
	KindConfig
	KindTimeout
	KindReadOnly
	KindConflict
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindCorruptStore:
		return "corrupt store"
	case KindExternalConfigCorrupt:
		return "external config corrupt"
	case KindDuplicateName:
		return "duplicate name"
	case KindDanglingReference:
		return "dangling reference"
	case KindValidation:
		return "validation error"
	case KindIO:
		return "I/O error"
	case KindConfig:
		return "configuration error"
	case KindTimeout:
		return "timeout"
	case KindReadOnly:
		return "read-only store"
	case KindConflict:
		return "conflict"
	case KindAborted:
		return "aborted"
	default:
		return "unknown error"
	}
}

// Error is the structured error type for claude-menu.
type Error struct {
	Op      Op     // Operation that failed
	Kind    Kind   // Category of error
	Err     error  // Underlying error
	Context string // Additional context
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Context, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error. Arguments can be:
// - Op: the operation name
// - Kind: the error kind
// - string: context message
// - error: the underlying error
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case string:
			e.Context = a
		case error:
			e.Err = a
		}
	}
	if e.Err == nil {
		e.Err = errors.New(e.Context)
		e.Context = ""
	}
	return e
}

// Is reports whether err, or any error it wraps, is of the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// GetKind returns the Kind of the outermost classified error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Session errors
func SessionNotFound(id string) error {
	return E(Op("session.Get"), KindNotFound, fmt.Sprintf("session %s not found", id))
}

func DanglingParent(childID, parentID string) error {
	return E(Op("session.Parent"), KindDanglingReference, fmt.Sprintf("session %s references missing parent %s", childID, parentID))
}

func SessionRunning(id string, pid int) error {
	return E(Op("session.Delete"), KindConflict, fmt.Sprintf("session %s is still running (pid %d)", id, pid))
}

// Profile errors
func ProfileNotFound(name string) error {
	return E(Op("profile.Get"), KindNotFound, fmt.Sprintf("profile %s not found", name))
}

func DuplicateProfileName(name, ownerID string) error {
	return E(Op("profile.Create"), KindDuplicateName, fmt.Sprintf("profile name %s already belongs to session %s", name, ownerID))
}

func DanglingHandle(name, handle string) error {
	return E(Op("profile.Resolve"), KindDanglingReference, fmt.Sprintf("profile %s handle %s is not present in the terminal settings", name, handle))
}

// InvalidName reports a malformed user-supplied session or profile name.
func InvalidName(name, reason string) error {
	return E(Op("validate.Name"), KindValidation, fmt.Sprintf("invalid name %q: %s", name, reason))
}

// InvalidPath reports a malformed user-supplied file path.
func InvalidPath(path, reason string) error {
	return E(Op("validate.Path"), KindValidation, fmt.Sprintf("invalid path %q: %s", path, reason))
}

// Tracking store errors
func CorruptStore(path, quarantine string, err error) error {
	return E(Op("tracking.Load"), KindCorruptStore, fmt.Sprintf("%s could not be parsed, moved to %s", path, quarantine), err)
}

func ReadOnlyStore(path string, version int) error {
	return E(Op("tracking.Save"), KindReadOnly, fmt.Sprintf("%s has unsupported version %d and is read-only", path, version))
}

// External config errors
func ExternalConfigCorrupt(path, reason string) error {
	return E(Op("terminal.Validate"), KindExternalConfigCorrupt, fmt.Sprintf("%s: %s", path, reason))
}

// Artifact errors
func ArtifactConflict(path string, profiles []string) error {
	return E(Op("artifact.Resolve"), KindConflict, fmt.Sprintf("background %s is used by %d profile(s): %s", path, len(profiles), strings.Join(profiles, ", ")))
}

func OperationAborted(op string) error {
	return E(Op(op), KindAborted, "aborted by caller")
}

// Config errors
func ConfigLoadFailed(path string, err error) error {
	return E(Op("config.Load"), KindConfig, fmt.Sprintf("failed to load config from %s", path), err)
}

func ConfigSaveFailed(path string, err error) error {
	return E(Op("config.Save"), KindConfig, fmt.Sprintf("failed to save config to %s", path), err)
}

func ConfigInvalid(reason string) error {
	return E(Op("config.Validate"), KindConfig, reason)
}

// Collaborator errors
func BranchLookupTimeout(path string) error {
	return E(Op("git.BranchOf"), KindTimeout, fmt.Sprintf("timed out reading branch for %s", path))
}
