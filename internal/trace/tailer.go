package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Tailer follows a live event log that the capture pipeline appends to,
// and emits each new line as a trace Event. File system notifications
// drive the reads, with a polling fallback for file systems where writes
// don't reliably produce events. Truncation (a new match log) resets the
// read position.
type Tailer struct {
	path     string
	interval time.Duration

	mu      sync.Mutex
	offset  int64
	partial string // incomplete trailing line carried between reads

	ctx     context.Context
	cancel  context.CancelFunc
	updates chan Event
	errs    chan error
	done    chan struct{}
}

// TailerConfig holds configuration for a Tailer.
type TailerConfig struct {
	// Path is the event log to follow.
	Path string

	// Interval is the polling fallback period.
	// Default: 2 seconds
	Interval time.Duration

	// BufferSize is the size of the updates channel buffer.
	// Default: 100
	BufferSize int
}

// NewTailer creates a tailer positioned at the end of the current file,
// so only events appended after construction are delivered.
func NewTailer(config *TailerConfig) (*Tailer, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if config.Interval == 0 {
		config.Interval = 2 * time.Second
	}
	if config.BufferSize == 0 {
		config.BufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Tailer{
		path:     config.Path,
		interval: config.Interval,
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan Event, config.BufferSize),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}

	if info, err := os.Stat(t.path); err == nil {
		t.offset = info.Size()
	} else if !os.IsNotExist(err) {
		cancel()
		return nil, fmt.Errorf("stat event log: %w", err)
	}

	return t, nil
}

// Start begins following the file in a background goroutine.
func (t *Tailer) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: the log file itself may not exist yet, and
	// rotation replaces the inode.
	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go t.run(watcher)
	return nil
}

func (t *Tailer) run(watcher *fsnotify.Watcher) {
	defer close(t.done)
	defer func() {
		_ = watcher.Close()
	}()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name == t.path && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.readNew()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Tailer] Watcher error: %v", err)
		case <-ticker.C:
			// Fallback for missed notifications.
			t.readNew()
		}
	}
}

// readNew reads everything appended since the last read and emits it.
func (t *Tailer) readNew() {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.reportError(fmt.Errorf("open event log: %w", err))
		}
		return
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		t.reportError(fmt.Errorf("stat event log: %w", err))
		return
	}
	if info.Size() < t.offset {
		// Truncated: a new log was started in place.
		log.Printf("[Tailer] Event log truncated, restarting from the top")
		t.offset = 0
		t.partial = ""
	}
	if info.Size() == t.offset {
		return
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		t.reportError(fmt.Errorf("seek event log: %w", err))
		return
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// Keep the incomplete tail for the next read.
			t.partial += line
			t.offset += int64(len(line))
			return
		}
		if err != nil {
			t.reportError(fmt.Errorf("read event log: %w", err))
			return
		}
		t.offset += int64(len(line))
		full := strings.TrimSpace(t.partial + line)
		t.partial = ""
		if full == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(full), &event); err != nil {
			log.Printf("[Tailer] Skipping malformed event line: %v", err)
			continue
		}
		select {
		case t.updates <- event:
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Tailer) reportError(err error) {
	select {
	case t.errs <- err:
	default:
	}
}

// Events returns the channel of tailed events.
func (t *Tailer) Events() <-chan Event {
	return t.updates
}

// Errors returns the channel of tailer errors.
func (t *Tailer) Errors() <-chan error {
	return t.errs
}

// Stop stops tailing and waits for the background goroutine to exit.
func (t *Tailer) Stop() {
	t.cancel()
	<-t.done
}
