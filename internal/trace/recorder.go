package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Recorder appends trace events to a file, one JSON object per line.
// Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
}

// NewRecorder opens (or creates) a trace file for appending.
func NewRecorder(path string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trace directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &Recorder{f: f, enc: json.NewEncoder(f), path: path}, nil
}

// Append writes one event line.
func (r *Recorder) Append(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return fmt.Errorf("recorder is closed")
	}
	if err := r.enc.Encode(ev); err != nil {
		return fmt.Errorf("append trace event: %w", err)
	}
	return nil
}

// Path returns the trace file path.
func (r *Recorder) Path() string {
	return r.path
}

// Close flushes and closes the trace file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
