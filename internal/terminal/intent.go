package terminal

import (
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/session"
)

// baseNamespace derives the base profile handle from its name, so every
// install agrees on it.
var baseNamespace = uuid.MustParse("6f1a3c52-8e0d-4c1b-9a57-2b8f0de4c3a1")

// Intent is one change to the settings file.
type Intent interface {
	Kind() string
	apply(d *document, s *Synchronizer) (handle string, err error)
}

// NewHandle returns a fresh profile handle in the terminal's brace form.
func NewHandle() string {
	return FormatHandle(uuid.New())
}

// FormatHandle renders id as a profile handle.
func FormatHandle(id uuid.UUID) string {
	return "{" + id.String() + "}"
}

// BaseHandle returns the handle of the base profile named name.
func BaseHandle(name string) string {
	return FormatHandle(uuid.NewSHA1(baseNamespace, []byte(name)))
}

// CreateProfile inserts a session profile, creating the base profile first
// if it is missing. A profile with the same name launching another session
// is a duplicate.
type CreateProfile struct {
	Handle            string
	Name              string
	SessionID         string
	StartingDirectory string
	Commandline       string
	BackgroundImage   string
}

func (CreateProfile) Kind() string { return "create-profile" }

func (c CreateProfile) apply(d *document, s *Synchronizer) (string, error) {
	base, err := s.ensureBase(d)
	if err != nil {
		return "", err
	}

	if i := d.indexByName(c.Name); i >= 0 {
		existing := d.entity(i)
		handle := existing.Get(fieldHandle).String()
		owner := sessionOf(existing)
		own := sameHandle(handle, c.Handle) || (c.SessionID != "" && owner == c.SessionID)
		if !own {
			if owner == "" {
				owner = "unknown"
			}
			return "", cerrors.DuplicateProfileName(c.Name, owner)
		}
		// Re-creating our own profile refreshes its owned fields.
		return handle, c.refresh(d, i, s)
	}

	if i := d.index(c.Handle); i >= 0 {
		return d.entity(i).Get(fieldHandle).String(), c.refresh(d, i, s)
	}

	fields := []field{
		{fieldHandle, c.Handle},
		{fieldName, c.Name},
		{fieldCommandline, c.Commandline},
	}
	if c.StartingDirectory != "" {
		fields = append(fields, field{fieldStartingDir, c.StartingDirectory})
	}
	if c.BackgroundImage != "" {
		fields = append(fields, field{fieldBackground, c.BackgroundImage}, field{fieldOpacity, s.opacity()})
	}
	fields = append(fields, field{fieldHidden, false})

	entity, err := buildEntity(fields, base)
	if err != nil {
		return "", err
	}
	return c.Handle, d.appendEntity(entity)
}

func (c CreateProfile) refresh(d *document, i int, s *Synchronizer) error {
	updates := []field{
		{fieldName, c.Name},
		{fieldCommandline, c.Commandline},
	}
	if c.StartingDirectory != "" {
		updates = append(updates, field{fieldStartingDir, c.StartingDirectory})
	}
	if c.BackgroundImage != "" {
		updates = append(updates, field{fieldBackground, c.BackgroundImage}, field{fieldOpacity, s.opacity()})
	}
	return setChanged(d, i, updates)
}

// UpdateProfile patches owned presentation fields on the profile matched by
// Handle. Nil fields are left alone.
type UpdateProfile struct {
	Handle          string
	Name            *string
	BackgroundImage *string
	Opacity         *float64
}

func (UpdateProfile) Kind() string { return "update-profile" }

func (u UpdateProfile) apply(d *document, _ *Synchronizer) (string, error) {
	i := d.index(u.Handle)
	if i < 0 {
		return "", cerrors.DanglingHandle("", u.Handle)
	}
	var updates []field
	if u.Name != nil {
		updates = append(updates, field{fieldName, *u.Name})
	}
	if u.BackgroundImage != nil {
		updates = append(updates, field{fieldBackground, *u.BackgroundImage})
	}
	if u.Opacity != nil {
		updates = append(updates, field{fieldOpacity, *u.Opacity})
	}
	return d.entity(i).Get(fieldHandle).String(), setChanged(d, i, updates)
}

// DeleteProfile removes the profile matched by Handle. A missing profile is
// not an error.
type DeleteProfile struct {
	Handle string
}

func (DeleteProfile) Kind() string { return "delete-profile" }

func (x DeleteProfile) apply(d *document, _ *Synchronizer) (string, error) {
	i := d.index(x.Handle)
	if i < 0 {
		return x.Handle, nil
	}
	return x.Handle, d.remove(i)
}

// setChanged writes only the fields whose value differs, so a no-op update
// leaves the bytes alone.
func setChanged(d *document, i int, updates []field) error {
	entity := d.entity(i)
	for _, f := range updates {
		if sameValue(entity.Get(f.key), f.value) {
			continue
		}
		if err := d.set(i, f.key, f.value); err != nil {
			return err
		}
	}
	return nil
}

func sameValue(cur gjson.Result, v any) bool {
	if !cur.Exists() {
		return false
	}
	switch val := v.(type) {
	case string:
		return cur.Type == gjson.String && cur.String() == val
	case float64:
		return cur.Type == gjson.Number && cur.Float() == val
	case bool:
		return (cur.Type == gjson.True || cur.Type == gjson.False) && cur.Bool() == val
	}
	return false
}

// ensureBase returns the base profile, appending it if absent.
func (s *Synchronizer) ensureBase(d *document) (gjson.Result, error) {
	name := s.baseName()
	if i := d.indexByName(name); i >= 0 {
		return d.entity(i), nil
	}

	fields := []field{
		{fieldHandle, BaseHandle(name)},
		{fieldName, name},
		{fieldCommandline, session.CLI},
		{fieldHidden, true},
	}
	fields = append(fields, baseDefaults...)
	entity, err := buildEntity(fields, gjson.Result{})
	if err != nil {
		return gjson.Result{}, err
	}
	if err := d.appendEntity(entity); err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(entity), nil
}
