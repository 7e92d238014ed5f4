package logstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case _, ok := <-w.Changes():
		if !ok {
			t.Fatal("changes channel closed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_ReportsNewLogs(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "-home-u-proj", "s1", userLine)

	w, err := NewWatcher(root, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Existing project directory.
	writeLog(t, root, "-home-u-proj", "s2", userLine)
	waitChange(t, w)

	// A project directory created after the watcher started.
	if err := os.Mkdir(filepath.Join(root, "-home-u-other"), 0o755); err != nil {
		t.Fatal(err)
	}
	waitChange(t, w)
	time.Sleep(50 * time.Millisecond)
	writeLog(t, root, "-home-u-other", "s3", userLine)
	waitChange(t, w)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	// Drains any last notification; blocks forever if Run left it open.
	for range w.Changes() {
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent"), 0); err == nil {
		t.Error("expected an error for a missing root")
	}
}

func TestWatcher_IgnoresTempFiles(t *testing.T) {
	w := &Watcher{}
	tests := map[string]bool{
		"/r/p/s1.jsonl":                   true,
		"/r/p/sessions-index.json":        true,
		"/r/p/.sessions-index.json.tmp-1": false,
		"/r/p/s1.jsonl.tmp":               false,
	}
	for name, want := range tests {
		if got := w.relevant(name); got != want {
			t.Errorf("relevant(%q) = %v, want %v", name, got, want)
		}
	}
}
