package background

import (
	"os"
	"path/filepath"
	"sync"
)

// Recorder is a Renderer that writes a small placeholder file and records
// each call. Tests use it in place of PNGRenderer.
type Recorder struct {
	mu    sync.Mutex
	calls []RecordedRender
	Err   error
}

// RecordedRender is one call to Recorder.Render.
type RecordedRender struct {
	Source Source
	Dest   string
}

func (r *Recorder) Render(src Source, dest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.calls = append(r.calls, RecordedRender{Source: src, Dest: dest})
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("png:"+string(src.Kind)), 0o644)
}

// Calls returns the renders so far.
func (r *Recorder) Calls() []RecordedRender {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedRender(nil), r.calls...)
}
