package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/cjs2esm/pkg/converter"
)

// Watcher converts files again when they change.
//
// Events are debounced per file. Before converting, the file's hash is
// checked against the ledger, so the watcher's own in-place writes and
// saves that do not change content are ignored.
//
// Usage:
//
//	watcher, err := NewWatcher(scanner, DefaultWatchOptions(), logger)
//	err = watcher.Start(ctx, "/path/to/repo", scanOpts)
//	defer watcher.Stop()
type Watcher struct {
	watcher *fsnotify.Watcher
	scanner *Scanner
	options WatchOptions
	logger  *slog.Logger

	root     string
	scanOpts ScanOptions
	matcher  *matcher
	ctx      context.Context

	timers   map[string]*time.Timer
	timersMu sync.Mutex

	// OnResult, when set before Start, receives every conversion.
	OnResult func(FileResult)

	stopChan chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher. The scanner must have a ledger.
func NewWatcher(scanner *Scanner, options WatchOptions, logger *slog.Logger) (*Watcher, error) {
	if scanner.Ledger() == nil {
		return nil, fmt.Errorf("watcher requires a scanner with a ledger")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}
	for _, pattern := range options.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern: %s", pattern)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		watcher:  fsw,
		scanner:  scanner,
		options:  options,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}, nil
}

// Start watches every non-excluded directory under root and returns. Events
// are processed in the background until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context, root string, opts ScanOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("watcher already stopped")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if opts.OutDir != "" {
		if opts.OutDir, err = filepath.Abs(opts.OutDir); err != nil {
			return fmt.Errorf("failed to resolve %s: %w", opts.OutDir, err)
		}
	}
	// Outputs are written as files change, never previewed.
	opts.DryRun = false

	m, err := newMatcher(root, opts)
	if err != nil {
		return err
	}

	w.root, w.scanOpts, w.matcher, w.ctx = root, opts, m, ctx
	if err := w.addTree(root); err != nil {
		return err
	}
	w.started = true

	w.logger.Info("File watcher started", "root", root, "debounce", w.options.Debounce)

	w.wg.Add(1)
	go w.eventLoop(ctx)
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.matcher.excluded(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Stop ends watching and cancels pending conversions. It is idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopChan)
	w.mu.Unlock()

	w.timersMu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.timersMu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()

	w.logger.Info("File watcher stopped")
	return err
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
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
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.shouldIgnore(path) {
		return
	}

	w.logger.Debug("File event", "op", event.Op.String(), "file", path)

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.matcher.excluded(path) {
				if err := w.addTree(path); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
		w.schedule(path)

	case event.Has(fsnotify.Write):
		w.schedule(path)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(path)
		w.scanner.Ledger().Remove(path)
	}
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.options.IgnorePatterns {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// schedule converts path once it has been quiet for the debounce interval.
func (w *Watcher) schedule(path string) {
	if !w.matcher.matches(path) {
		return
	}

	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.options.Debounce, func() {
		w.timersMu.Lock()
		delete(w.timers, path)
		w.timersMu.Unlock()

		w.convert(path)
	})
}

func (w *Watcher) cancel(path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) convert(path string) {
	if w.ctx.Err() != nil {
		return
	}

	ledger := w.scanner.Ledger()
	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Debug("Changed file is gone", "file", path, "error", err)
		return
	}
	if ledger.Seen(path, converter.ComputeContentHash(content)) {
		w.logger.Debug("File content already converted", "file", path)
		return
	}

	ledger.Invalidate(path)
	result := w.scanner.ConvertFile(w.ctx, w.root, path, w.scanOpts)
	if result.Err != nil {
		w.logger.Warn("Failed to convert changed file", "file", path, "error", result.Err)
	} else {
		w.logger.Info("Converted changed file",
			"file", path,
			"output", result.OutputPath,
			"written", result.Written,
			"rewritten", result.Result.Report.Rewritten)
	}

	if w.OnResult != nil {
		w.OnResult(result)
	}
}

// GetStats returns watcher counters.
func (w *Watcher) GetStats() WatcherStats {
	w.timersMu.Lock()
	pending := len(w.timers)
	w.timersMu.Unlock()

	w.mu.Lock()
	running := w.started && !w.stopped
	w.mu.Unlock()

	return WatcherStats{
		PendingConversions: pending,
		IsRunning:          running,
	}
}

// WatcherStats are watcher counters.
type WatcherStats struct {
	PendingConversions int
	IsRunning          bool
}
