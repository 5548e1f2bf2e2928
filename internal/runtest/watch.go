package runtest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"runvet/pkg/logging"
)

// DefaultDebounceInterval is how long a watcher waits after the last
// filesystem event on a runbook before signalling a re-run. Editors tend to
// write files in bursts (truncate, write, chmod), so a short quiet period
// collapses those into a single trigger.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher observes the directories of a set of runbooks and signals when a
// runbook document or its test configuration changes. Each signal carries the
// runbook path whose suite should be re-run.
type Watcher struct {
	watcher  *fsnotify.Watcher
	interval time.Duration
	logger   Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	// dirIndex maps a watched directory to the runbook path rooted there.
	dirIndex map[string]string

	// fired carries expired debounce timers to the event loop. Only the
	// loop touches the output channel, so a timer that fires during
	// shutdown lands in this buffer instead of a closed channel. fired is
	// never closed.
	fired chan string

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over the given runbook paths. Every runbook's
// directory is registered with fsnotify; changes to any runbook.mdx or
// runbook_test.yml inside a watched directory trigger a signal after the
// debounce interval elapses.
func NewWatcher(runbookPaths []string, logger Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		interval: DefaultDebounceInterval,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		dirIndex: make(map[string]string),
		fired:    make(chan string, 16),
		stopCh:   make(chan struct{}),
	}

	for _, rb := range runbookPaths {
		dir := filepath.Dir(rb)
		if _, seen := w.dirIndex[dir]; seen {
			continue
		}
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			return nil, err
		}
		w.dirIndex[dir] = rb
		logging.Debug("Watcher", "watching %s", dir)
	}

	return w, nil
}

// Changes runs the event loop and delivers debounced runbook paths on the
// returned channel. The loop exits when ctx is cancelled or Stop is called,
// at which point the channel is closed.
func (w *Watcher) Changes(ctx context.Context) <-chan string {
	out := make(chan string, 16)
	go w.loop(ctx, out)
	return out
}

// Stop shuts the watcher down and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *Watcher) loop(ctx context.Context, out chan<- string) {
	defer close(out)
	defer w.cancelPending()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher", err, "filesystem watcher error")
			w.logger.Error("Filesystem watcher error: %v", err)
		case runbookPath := <-w.fired:
			select {
			case out <- runbookPath:
				w.logger.Debug("Change detected for %s", runbookPath)
			default:
				w.logger.Info("Change queue full, dropping event for %s", runbookPath)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !isSuiteFile(event.Name) {
		return
	}

	dir := filepath.Dir(event.Name)
	runbookPath, ok := w.dirIndex[dir]
	if !ok {
		return
	}

	w.debounce(runbookPath)
}

// debounce resets the per-runbook timer so that only the last event in a
// burst produces a signal.
func (w *Watcher) debounce(runbookPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[runbookPath]; ok {
		timer.Stop()
	}

	w.pending[runbookPath] = time.AfterFunc(w.interval, func() {
		w.mu.Lock()
		delete(w.pending, runbookPath)
		w.mu.Unlock()

		select {
		case w.fired <- runbookPath:
		default:
			logging.Warn("Watcher", "change queue full, dropping event for %s", runbookPath)
		}
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, timer := range w.pending {
		timer.Stop()
		delete(w.pending, key)
	}
}

func isSuiteFile(path string) bool {
	base := filepath.Base(path)
	if base == ConfigFile {
		return true
	}
	// Some editors write through a temp file and rename it into place, so
	// match on the final name only.
	return strings.EqualFold(base, "runbook.mdx")
}
