package logstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zhubert/claude-menu/internal/logger"
)

// DefaultDebounce is how long a Watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports that something under a log store root changed: a log
// written, a manifest updated, a project directory created. Bursts of
// events collapse into one notification.
type Watcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan struct{}
}

// NewWatcher watches root and each project directory under it.
func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		watcher:  fw,
		changes:  make(chan struct{}, 1),
	}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		fw.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(filepath.Join(root, e.Name()))
		}
	}
	return w, nil
}

// Watch adds another directory, such as the menu's own store directory.
// Any change in it is reported.
func (w *Watcher) Watch(dir string) error {
	return w.watcher.Add(dir)
}

func (w *Watcher) add(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		logger.ComponentLogger("LogStore").Warn("failed to watch project directory", "dir", dir, "error", err)
	}
}

// Changes delivers one value per settled burst of changes. It is closed
// when Run returns.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	log := logger.ComponentLogger("LogStore")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.root {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.add(event.Name)
				}
			}
			if !w.relevant(event.Name) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "root", w.root, "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// relevant filters out editor swap files and temp files from atomic writes.
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	return true
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
