// Package logstore reads the conversation log store: one directory per
// project, each holding <sessionId>.jsonl files and an optional
// sessions-index.json manifest. It never writes.
package logstore

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/paths"
	"github.com/zhubert/claude-menu/internal/pricing"
)

const (
	manifestFile = "sessions-index.json"
	logExt       = ".jsonl"

	// syntheticModel marks entries the CLI writes itself; never a real model.
	syntheticModel = "<synthetic>"
)

// Session is one conversation as seen in the log store.
type Session struct {
	ID          string
	ProjectKey  string // encoded directory name
	ProjectPath string
	FilePath    string
	Title       string
	FirstPrompt string
	GitBranch   string
	Created     time.Time
	Modified    time.Time

	MessageCount   int
	Model          string
	Usage          pricing.Usage
	Cost           float64
	Valid          bool
	MalformedLines int
}

// Reader scans a log store root.
type Reader struct {
	Root   string
	Pricer pricing.Pricer
}

// NewReader returns a Reader over root using the default pricing table.
func NewReader(root string) *Reader {
	return &Reader{Root: root, Pricer: pricing.DefaultTable()}
}

// Sessions returns a lazy sequence of every session under Root. Each range
// over the sequence performs a fresh directory scan.
func (r *Reader) Sessions() iter.Seq[Session] {
	return func(yield func(Session) bool) {
		log := logger.ComponentLogger("LogStore")

		projects, err := os.ReadDir(r.Root)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn("failed to read log store root", "root", r.Root, "error", err)
			}
			return
		}

		for _, project := range projects {
			if !project.IsDir() {
				continue
			}
			dir := filepath.Join(r.Root, project.Name())
			manifest := readManifest(dir)

			files, err := os.ReadDir(dir)
			if err != nil {
				log.Warn("failed to read project directory", "dir", dir, "error", err)
				continue
			}

			for _, file := range files {
				if file.IsDir() || !strings.HasSuffix(file.Name(), logExt) {
					continue
				}
				id := strings.TrimSuffix(file.Name(), logExt)
				if strings.HasPrefix(id, "agent-") {
					continue
				}
				s := r.readSession(project.Name(), filepath.Join(dir, file.Name()), id, manifest[id])
				if s.MalformedLines > 0 {
					log.Warn("skipped malformed log lines", "sessionID", id, "count", s.MalformedLines)
				}
				if !yield(s) {
					return
				}
			}
		}
	}
}

// All collects Sessions into a slice.
func (r *Reader) All() []Session {
	return slices.Collect(r.Sessions())
}

func (r *Reader) readSession(key, file, id string, entry manifestEntry) Session {
	projectPath, _ := paths.Decode(key)
	s := Session{
		ID:          id,
		ProjectKey:  key,
		ProjectPath: projectPath,
		FilePath:    file,
	}

	if info, err := os.Stat(file); err == nil {
		s.Modified = info.ModTime()
		s.Created = info.ModTime()
	}

	scan, err := scanFile(file)
	if err != nil {
		logger.ComponentLogger("LogStore").Warn("failed to read session log", "sessionID", id, "error", err)
	}
	s.MessageCount = scan.lines
	s.MalformedLines = scan.malformed
	s.Valid = scan.lines > 0
	s.Model = pricing.Family(scan.model)
	s.Usage = scan.usage
	s.Title = scan.summary
	s.FirstPrompt = scan.firstPrompt
	s.GitBranch = scan.gitBranch
	if scan.cwd != "" {
		s.ProjectPath = scan.cwd
	}
	if !scan.firstTimestamp.IsZero() {
		s.Created = scan.firstTimestamp
	}

	entry.apply(&s)

	if r.Pricer != nil && !s.Usage.IsZero() {
		s.Cost = r.Pricer.Cost(s.Model, s.Usage)
	}
	return s
}

type scanResult struct {
	lines          int
	malformed      int
	model          string
	usage          pricing.Usage
	summary        string
	firstPrompt    string
	gitBranch      string
	cwd            string
	firstTimestamp time.Time
}

// scanFile streams a JSONL file once. Lines that are not valid JSON are
// counted as malformed and otherwise ignored.
func scanFile(path string) (scanResult, error) {
	var res scanResult

	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	// Assistant entries repeat per content block with the same message id;
	// keep the last usage seen for each id.
	byMessage := make(map[string]pricing.Usage)
	var anonymous pricing.Usage

	err = eachLine(f, func(line []byte) {
		if !gjson.ValidBytes(line) {
			res.malformed++
			return
		}
		res.lines++

		fields := gjson.GetManyBytes(line, "type", "message.model", "timestamp", "cwd", "gitBranch")
		typ := fields[0].String()

		if m := fields[1].String(); m != "" && m != syntheticModel {
			res.model = m
		}
		if res.firstTimestamp.IsZero() && fields[2].Exists() {
			if ts, err := time.Parse(time.RFC3339Nano, fields[2].String()); err == nil {
				res.firstTimestamp = ts
			}
		}
		if res.cwd == "" {
			res.cwd = fields[3].String()
		}
		if b := fields[4].String(); b != "" {
			res.gitBranch = b
		}

		switch typ {
		case "summary":
			if s := gjson.GetBytes(line, "summary").String(); s != "" {
				res.summary = s
			}
		case "user":
			if res.firstPrompt == "" {
				res.firstPrompt = promptText(gjson.GetBytes(line, "message.content"))
			}
		case "assistant":
			usage := gjson.GetBytes(line, "message.usage")
			if !usage.Exists() {
				return
			}
			u := usageOf(usage)
			if id := gjson.GetBytes(line, "message.id").String(); id != "" {
				byMessage[id] = u
			} else {
				anonymous = anonymous.Add(u)
			}
		}
	})

	res.usage = anonymous
	for _, u := range byMessage {
		res.usage = res.usage.Add(u)
	}
	return res, err
}

// ReadUsage streams a log file and returns its assistant usage totals and
// the number of malformed lines skipped.
func ReadUsage(path string) (pricing.Usage, int, error) {
	res, err := scanFile(path)
	return res.usage, res.malformed, err
}

func usageOf(u gjson.Result) pricing.Usage {
	return pricing.Usage{
		Input:      u.Get("input_tokens").Int(),
		Output:     u.Get("output_tokens").Int(),
		CacheWrite: u.Get("cache_creation_input_tokens").Int(),
		CacheRead:  u.Get("cache_read_input_tokens").Int(),
	}
}

// promptText extracts display text from a user message content field,
// which is either a string or an array of content blocks.
func promptText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	var text string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			text = block.Get("text").String()
			return false
		}
		return true
	})
	return text
}

// eachLine calls fn for every non-empty line. Lines of any length are
// supported; bufio.Scanner would reject very long tool outputs.
func eachLine(r io.Reader, fn func([]byte)) error {
	br := bufio.NewReaderSize(r, 256*1024)
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			fn(trimmed)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
