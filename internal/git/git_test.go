package git

import (
	"context"
	"errors"
	"testing"
	"time"

	pexec "github.com/zhubert/claude-menu/internal/exec"
)

func TestBranchOf(t *testing.T) {
	mockExec := pexec.NewMockExecutor(nil)
	mockExec.AddExactMatch("git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, pexec.MockResponse{
		Stdout: []byte("feature/menu\n"),
	})
	svc := NewGitServiceWithExecutor(mockExec)

	branch, ok := svc.BranchOf(context.Background(), "/repo")
	if !ok || branch != "feature/menu" {
		t.Errorf("BranchOf = (%q, %v), want (feature/menu, true)", branch, ok)
	}

	calls := mockExec.GetCalls()
	if len(calls) != 1 || calls[0].Dir != "/repo" {
		t.Errorf("unexpected calls: %+v", calls)
	}
}

func TestBranchOf_Failures(t *testing.T) {
	tests := []struct {
		name string
		path string
		resp pexec.MockResponse
	}{
		{"not a repository", "/tmp", pexec.MockResponse{Err: errors.New("exit status 128")}},
		{"empty output", "/repo", pexec.MockResponse{Stdout: []byte("\n")}},
		{"empty path", "", pexec.MockResponse{Stdout: []byte("main\n")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockExec := pexec.NewMockExecutor(nil)
			mockExec.AddPrefixMatch("git", []string{"rev-parse"}, tt.resp)
			svc := NewGitServiceWithExecutor(mockExec)

			if branch, ok := svc.BranchOf(context.Background(), tt.path); ok || branch != "" {
				t.Errorf("BranchOf = (%q, %v), want empty", branch, ok)
			}
		})
	}
}

func TestBranchOf_Timeout(t *testing.T) {
	mockExec := pexec.NewMockExecutor(nil)
	mockExec.AddPrefixMatch("git", []string{"rev-parse"}, pexec.MockResponse{Stdout: []byte("main\n")})
	// Simulate a hung git that only returns when the context gives up
	mockExec.Hook = func(ctx context.Context, _ pexec.MockCall) error {
		<-ctx.Done()
		return ctx.Err()
	}

	svc := NewGitServiceWithExecutor(mockExec).WithTimeout(20 * time.Millisecond)

	start := time.Now()
	branch, ok := svc.BranchOf(context.Background(), "/repo")
	if ok || branch != "" {
		t.Errorf("BranchOf = (%q, %v), want empty after timeout", branch, ok)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("lookup took %v, should be bounded by the timeout", elapsed)
	}
}

func TestStaticBranches(t *testing.T) {
	b := StaticBranches{"/a": "main", "/b": ""}
	if got, ok := b.BranchOf(context.Background(), "/a"); !ok || got != "main" {
		t.Errorf("BranchOf(/a) = (%q, %v)", got, ok)
	}
	if _, ok := b.BranchOf(context.Background(), "/b"); ok {
		t.Error("empty branch should report not ok")
	}
	if _, ok := b.BranchOf(context.Background(), "/c"); ok {
		t.Error("unknown path should report not ok")
	}
}
