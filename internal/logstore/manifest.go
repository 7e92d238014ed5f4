package logstore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zhubert/claude-menu/internal/logger"
)

// manifestEntry holds the fields read from sessions-index.json. Zero values
// mean "not present" and leave the log-derived value alone.
type manifestEntry struct {
	Title       string
	FirstPrompt string
	GitBranch   string
	ProjectPath string
	Created     time.Time
}

// readManifest loads a project's sessions-index.json keyed by session id.
// A missing or unreadable manifest yields an empty map.
func readManifest(dir string) map[string]manifestEntry {
	out := make(map[string]manifestEntry)

	path := filepath.Join(dir, manifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if !gjson.ValidBytes(data) {
		logger.ComponentLogger("LogStore").Warn("ignoring unparseable manifest", "path", path)
		return out
	}

	doc := gjson.ParseBytes(data)
	entries := doc.Get("entries")
	if !entries.IsArray() {
		entries = doc.Get("sessions")
	}

	entries.ForEach(func(_, e gjson.Result) bool {
		id := first(e, "sessionId", "session_id", "id")
		if id == "" {
			return true
		}
		entry := manifestEntry{
			Title:       first(e, "customTitle", "summary", "title"),
			FirstPrompt: first(e, "firstPrompt", "first_prompt"),
			GitBranch:   first(e, "gitBranch", "git_branch"),
			ProjectPath: first(e, "projectPath", "project_path", "cwd"),
		}
		if ts := first(e, "created", "createdAt"); ts != "" {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				entry.Created = t
			}
		}
		out[id] = entry
		return true
	})
	return out
}

func first(e gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := e.Get(k).String(); v != "" {
			return v
		}
	}
	return ""
}

func (m manifestEntry) apply(s *Session) {
	if m.Title != "" {
		s.Title = m.Title
	}
	if m.FirstPrompt != "" {
		s.FirstPrompt = m.FirstPrompt
	}
	if m.GitBranch != "" {
		s.GitBranch = m.GitBranch
	}
	if m.ProjectPath != "" {
		s.ProjectPath = m.ProjectPath
	}
	if !m.Created.IsZero() {
		s.Created = m.Created
	}
}
