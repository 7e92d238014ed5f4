// Package reconcile merges what the log store shows with what the tracking
// store remembers into one ordered view of sessions.
//
// Tracking data wins for what a person chose (name, model, fork parent).
// Log data wins for what the CLI observed (timestamps, usage, message
// count). Sessions known only to tracking are pending: forks launched but
// not yet written to the log store.
package reconcile

import (
	"slices"
	"time"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/logstore"
	"github.com/zhubert/claude-menu/internal/pricing"
	"github.com/zhubert/claude-menu/internal/session"
	"github.com/zhubert/claude-menu/internal/tracking"
)

// UnknownParent is returned by ParentName for a fork edge whose parent is
// in neither store.
const UnknownParent = "unknown-parent"

// Tables is the part of the tracking store the engine reads.
type Tables interface {
	TrackedSessions() []tracking.Mapping
	Profiles() []tracking.ProfileRecord
}

// Session is the merged view of one session.
type Session struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ProfileName   string        `json:"profileName,omitempty"`
	ProfileHandle string        `json:"profileHandle,omitempty"`
	ProjectPath   string        `json:"projectPath"`
	ProjectKey    string        `json:"projectKey,omitempty"`
	Title         string        `json:"title,omitempty"`
	FirstPrompt   string        `json:"firstPrompt,omitempty"`
	GitBranch     string        `json:"gitBranch,omitempty"`
	Model         string        `json:"model,omitempty"`
	ForkedFrom    string        `json:"forkedFrom,omitempty"`
	Created       time.Time     `json:"created"`
	Modified      time.Time     `json:"modified"`
	MessageCount  int           `json:"messageCount"`
	Usage         pricing.Usage `json:"usage"`
	Cost          float64       `json:"cost"`
	Activity      Activity      `json:"activity"`
	Pending       bool          `json:"pending"`
	Running       bool          `json:"running"`
	PID           int           `json:"pid,omitempty"`
	Tracked       bool          `json:"tracked"`
	Valid         bool          `json:"valid"`
	LogFile       string        `json:"logFile,omitempty"`
	Children      []string      `json:"children,omitempty"`
}

// Unnamed reports whether the session has no tracked name.
func (s Session) Unnamed() bool {
	return s.ProfileName == ""
}

// DanglingEdge is a fork edge whose parent cannot be found.
type DanglingEdge struct {
	Child  string
	Parent string
}

// View is the reconciled set of sessions for one command.
type View struct {
	sessions []Session
	byID     map[string]int
	dangling []DanglingEdge
}

// BuildView merges log sessions with tracking records.
func BuildView(logSessions []logstore.Session, tables Tables, now time.Time) *View {
	log := logger.ComponentLogger("Reconcile")

	logged := make(map[string]logstore.Session, len(logSessions))
	for _, ls := range logSessions {
		// The same id under two project directories: newest file wins.
		if prev, ok := logged[ls.ID]; ok && !ls.Modified.After(prev.Modified) {
			continue
		}
		logged[ls.ID] = ls
	}

	handles := make(map[string]string)
	for _, p := range tables.Profiles() {
		handles[p.ProfileName] = p.ProfileHandle
	}

	v := &View{byID: make(map[string]int)}
	seen := make(map[string]bool)

	for _, m := range tables.TrackedSessions() {
		if seen[m.SessionID] {
			continue
		}
		seen[m.SessionID] = true

		s := Session{
			ID:            m.SessionID,
			Name:          session.UnnamedDisplay,
			ProfileName:   m.ProfileName,
			ProfileHandle: handles[m.ProfileName],
			ProjectPath:   m.ProjectPath,
			Model:         m.Model,
			ForkedFrom:    m.ForkedFrom,
			Tracked:       true,
		}
		if name, ok := session.NameFromProfile(m.ProfileName); ok {
			s.Name = name
		}

		if ls, ok := logged[m.SessionID]; ok {
			mergeLog(&s, ls)
		} else {
			s.Pending = true
			if created, err := time.Parse(time.RFC3339, m.Created); err == nil {
				s.Created = created
				s.Modified = created
			}
		}
		v.add(s)
	}

	for _, ls := range logged {
		if seen[ls.ID] {
			continue
		}
		s := Session{ID: ls.ID, Name: session.UnnamedDisplay}
		mergeLog(&s, ls)
		v.add(s)
	}

	for i := range v.sessions {
		v.sessions[i].Activity = Classify(now, v.sessions[i].Modified)
	}

	slices.SortFunc(v.sessions, func(a, b Session) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	for i, s := range v.sessions {
		v.byID[s.ID] = i
	}

	for _, s := range v.sessions {
		if s.ForkedFrom == "" {
			continue
		}
		if j, ok := v.byID[s.ForkedFrom]; ok {
			v.sessions[j].Children = append(v.sessions[j].Children, s.ID)
			continue
		}
		v.dangling = append(v.dangling, DanglingEdge{Child: s.ID, Parent: s.ForkedFrom})
		log.Warn("fork parent not found", "session", s.ID, "parent", s.ForkedFrom)
	}

	log.Debug("built view", "sessions", len(v.sessions), "logged", len(logged), "dangling", len(v.dangling))
	return v
}

// mergeLog copies the log-observed fields onto s. Tracking-chosen fields
// already set on s are kept.
func mergeLog(s *Session, ls logstore.Session) {
	s.Pending = false
	s.Created = ls.Created
	s.Modified = ls.Modified
	s.MessageCount = ls.MessageCount
	s.Usage = ls.Usage
	s.Cost = ls.Cost
	s.Valid = ls.Valid
	s.LogFile = ls.FilePath
	s.ProjectKey = ls.ProjectKey
	s.Title = ls.Title
	s.FirstPrompt = ls.FirstPrompt
	s.GitBranch = ls.GitBranch
	if ls.ProjectPath != "" {
		s.ProjectPath = ls.ProjectPath
	}
	if s.Model == "" {
		s.Model = pricing.Family(ls.Model)
	}
	if s.Created.IsZero() {
		s.Created = ls.Modified
	}
}

func (v *View) add(s Session) {
	v.sessions = append(v.sessions, s)
}

// Sessions returns the merged sessions, most recently modified first.
func (v *View) Sessions() []Session {
	return slices.Clone(v.sessions)
}

// Len returns the number of sessions in the view.
func (v *View) Len() int {
	return len(v.sessions)
}

// Get looks up a session by id.
func (v *View) Get(id string) (Session, bool) {
	i, ok := v.byID[id]
	if !ok {
		return Session{}, false
	}
	return v.sessions[i], true
}

// MarkRunning flags the sessions a CLI process is attached to.
func (v *View) MarkRunning(pids map[string]int) {
	for id, pid := range pids {
		if i, ok := v.byID[id]; ok {
			v.sessions[i].Running = true
			v.sessions[i].PID = pid
		}
	}
}

// Pending returns the sessions known only to tracking.
func (v *View) Pending() []Session {
	var out []Session
	for _, s := range v.sessions {
		if s.Pending {
			out = append(out, s)
		}
	}
	return out
}

// ParentName returns the display name of s's fork parent, "" when s is not a
// fork, or UnknownParent when the parent cannot be found.
func (v *View) ParentName(s Session) string {
	if s.ForkedFrom == "" {
		return ""
	}
	parent, ok := v.Get(s.ForkedFrom)
	if !ok {
		return UnknownParent
	}
	if parent.Unnamed() {
		return shortID(parent.ID)
	}
	return parent.Name
}

// Dangling returns the fork edges whose parent is missing from both stores.
func (v *View) Dangling() []DanglingEdge {
	return slices.Clone(v.dangling)
}

// Problems returns the dangling edges as typed errors.
func (v *View) Problems() []error {
	out := make([]error, 0, len(v.dangling))
	for _, d := range v.dangling {
		out = append(out, cerrors.DanglingParent(d.Child, d.Parent))
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
