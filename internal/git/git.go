// Package git answers the one question the session manager asks of a
// project directory: which branch is checked out.
package git

import (
	"context"
	"errors"
	"strings"
	"time"

	cerrors "github.com/zhubert/claude-menu/internal/errors"
	pexec "github.com/zhubert/claude-menu/internal/exec"
	"github.com/zhubert/claude-menu/internal/logger"
)

// DefaultTimeout bounds a branch lookup so a slow or hung git never blocks a command.
const DefaultTimeout = 300 * time.Millisecond

// BranchResolver reports the branch checked out at path. ok is false when
// path is not a repository, git is unavailable, or the lookup timed out.
type BranchResolver interface {
	BranchOf(ctx context.Context, path string) (branch string, ok bool)
}

// GitService runs git through a CommandExecutor.
type GitService struct {
	executor pexec.CommandExecutor
	timeout  time.Duration
}

// NewGitService returns a service backed by the real git binary.
func NewGitService() *GitService {
	return NewGitServiceWithExecutor(pexec.NewRealExecutor())
}

// NewGitServiceWithExecutor returns a service using executor, for tests.
func NewGitServiceWithExecutor(executor pexec.CommandExecutor) *GitService {
	return &GitService{executor: executor, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of s using timeout for every lookup.
func (s *GitService) WithTimeout(timeout time.Duration) *GitService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GitService{executor: s.executor, timeout: timeout}
}

// BranchOf implements BranchResolver.
func (s *GitService) BranchOf(ctx context.Context, path string) (string, bool) {
	if path == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	output, stderr, err := s.executor.Run(ctx, path, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		log := logger.ComponentLogger("Git")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Debug("branch lookup abandoned", "error", cerrors.BranchLookupTimeout(path), "timeout", s.timeout)
		} else {
			log.Debug("branch lookup failed", "path", path, "error", err, "stderr", strings.TrimSpace(string(stderr)))
		}
		return "", false
	}

	branch := strings.TrimSpace(string(output))
	if branch == "" {
		return "", false
	}
	return branch, true
}

// StaticBranches is a BranchResolver backed by a fixed map, for tests and
// for callers that already know the answer.
type StaticBranches map[string]string

// BranchOf implements BranchResolver.
func (m StaticBranches) BranchOf(_ context.Context, path string) (string, bool) {
	b, ok := m[path]
	return b, ok && b != ""
}
