package background

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/zhubert/claude-menu/internal/tracking"
)

// Info is what a generated background shows about its session.
type Info struct {
	SessionName  string
	Directory    string
	ComputerUser string
	ForkedFrom   string
	GitBranch    string
	Model        string
}

// Source is the input for one render.
type Source struct {
	Kind tracking.ImageType
	Info Info   // fork and continue
	Text string // custom-text; one line per newline
	File string // custom-file: an image to scale onto the canvas
}

// DefaultComputerUser returns "host:user" for the current process.
func DefaultComputerUser() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	name := os.Getenv("USER")
	if name == "" {
		name = os.Getenv("USERNAME")
	}
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	if name == "" {
		name = "user"
	}
	return host + ":" + name
}

// Lines returns the watermark lines, most prominent first.
func (i Info) Lines() []string {
	lines := []string{i.SessionName}
	if i.ForkedFrom != "" {
		lines = append(lines, "Forked from: "+i.ForkedFrom)
	}
	if i.ComputerUser != "" {
		lines = append(lines, i.ComputerUser)
	}
	if i.GitBranch != "" {
		lines = append(lines, "branch: "+i.GitBranch)
	}
	if i.Model != "" {
		lines = append(lines, "model: "+i.Model)
	}
	if i.Directory != "" {
		lines = append(lines, i.Directory)
	}
	return lines
}

// Sidecar renders the .txt file stored next to a background.
func (i Info) Sidecar(now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", i.SessionName)
	if i.ForkedFrom != "" {
		fmt.Fprintf(&b, "Forked from: %s\n", i.ForkedFrom)
	}
	fmt.Fprintf(&b, "Computer:User: %s\n", i.ComputerUser)
	if i.GitBranch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", i.GitBranch)
	}
	if i.Model != "" {
		fmt.Fprintf(&b, "Model: %s\n", i.Model)
	}
	fmt.Fprintf(&b, "Directory: %s\n", i.Directory)
	fmt.Fprintf(&b, "\nGenerated: %s\n", now.Format(time.RFC3339))
	return b.String()
}

// ParseSidecar reads the fields written by Sidecar. Unknown lines are
// ignored.
func ParseSidecar(text string) Info {
	var info Info
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ": ")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "session":
			info.SessionName = value
		case "forked from":
			info.ForkedFrom = value
		case "computer:user":
			info.ComputerUser = value
		case "branch":
			info.GitBranch = value
		case "model":
			info.Model = value
		case "directory":
			info.Directory = value
		}
	}
	return info
}

// SidecarPath returns the .txt path for an image path.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, extOf(imagePath)) + ".txt"
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexAny(path, `/\`) {
		return path[i:]
	}
	return ""
}

// Stale reports whether the sidecar next to imagePath is missing or
// describes something other than info.
func Stale(imagePath string, info Info) bool {
	data, err := os.ReadFile(SidecarPath(imagePath))
	if err != nil {
		return true
	}
	if _, err := os.Stat(imagePath); err != nil {
		return true
	}
	return ParseSidecar(string(data)) != info
}
