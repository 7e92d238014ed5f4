// Package process finds conversation CLI processes that are running a
// session right now.
package process

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"time"

	pexec "github.com/zhubert/claude-menu/internal/exec"
	"github.com/zhubert/claude-menu/internal/logger"
	"github.com/zhubert/claude-menu/internal/session"
)

// DefaultTimeout bounds the process listing.
const DefaultTimeout = 2 * time.Second

// Process is a running CLI process attached to a session.
type Process struct {
	PID       int
	Command   string
	SessionID string
}

// Finder lists running sessions.
type Finder interface {
	Running(ctx context.Context) ([]Process, error)
}

// PSFinder reads the process table with ps.
type PSFinder struct {
	executor pexec.CommandExecutor
	timeout  time.Duration
}

// NewPSFinder returns a finder backed by the real ps binary.
func NewPSFinder() *PSFinder {
	return NewPSFinderWithExecutor(pexec.NewRealExecutor())
}

// NewPSFinderWithExecutor returns a finder using executor, for tests.
func NewPSFinderWithExecutor(executor pexec.CommandExecutor) *PSFinder {
	return &PSFinder{executor: executor, timeout: DefaultTimeout}
}

// Running implements Finder. Windows has no portable way to read another
// process's command line, so nothing is reported there.
func (f *PSFinder) Running(ctx context.Context) ([]Process, error) {
	if runtime.GOOS == "windows" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	output, err := f.executor.Output(ctx, "", "ps", "-eo", "pid=,args=")
	if err != nil {
		return nil, err
	}
	procs := parsePS(string(output))
	logger.ComponentLogger("Process").Debug("found CLI processes", "count", len(procs))
	return procs, nil
}

// parsePS picks the CLI processes with a session flag out of ps output.
func parsePS(output string) []Process {
	var procs []Process
	for _, line := range strings.Split(output, "\n") {
		pidStr, args, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		args = strings.TrimSpace(args)
		if !isCLI(args) {
			continue
		}
		if id := SessionOf(args); id != "" {
			procs = append(procs, Process{PID: pid, Command: args, SessionID: id})
		}
	}
	return procs
}

// isCLI reports whether the command's executable is the conversation CLI.
// Node-launched installs show up as "node /path/to/claude ...".
func isCLI(args string) bool {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return false
	}
	exe := base(fields[0])
	if exe == "node" && len(fields) > 1 {
		exe = base(fields[1])
	}
	return exe == session.CLI || exe == session.CLI+".exe"
}

func base(path string) string {
	return path[strings.LastIndexAny(path, `/\`)+1:]
}

// SessionOf returns the session a CLI command line writes to. A fork names
// its new session with --session-id while --resume names the parent, so
// --session-id wins.
func SessionOf(cmdLine string) string {
	for _, flag := range []string{"--session-id", "--resume"} {
		fields := strings.Fields(cmdLine)
		for i, f := range fields {
			if v, ok := strings.CutPrefix(f, flag+"="); ok {
				return v
			}
			if f == flag && i+1 < len(fields) {
				return fields[i+1]
			}
		}
	}
	return ""
}

// SessionIDs indexes procs by session.
func SessionIDs(procs []Process) map[string]int {
	ids := make(map[string]int, len(procs))
	for _, p := range procs {
		ids[p.SessionID] = p.PID
	}
	return ids
}

// None is a Finder that never finds anything.
type None struct{}

// Running implements Finder.
func (None) Running(context.Context) ([]Process, error) { return nil, nil }
