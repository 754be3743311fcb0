// Package watch feeds traffic files dropped into a directory to a handler,
// one file at a time.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"nids-console/internal/convert"
)

// Handler processes one dropped file. Errors are logged and do not stop the
// watcher.
type Handler func(ctx context.Context, path string) error

// Config configures a Watcher.
type Config struct {
	Dir string `yaml:"dir"`

	// Settle is how long a file must go without writes before it is handled.
	Settle time.Duration `yaml:"settle"`

	// ProcessExisting handles files already present when the watcher starts.
	ProcessExisting bool `yaml:"process_existing"`

	Logger *slog.Logger `yaml:"-" validate:"-"`
}

// DefaultConfig returns the default watcher settings.
func DefaultConfig() Config {
	return Config{
		Dir:    "incoming",
		Settle: 500 * time.Millisecond,
	}
}

// Watcher debounces filesystem events on Dir and hands settled csv and
// xlsx files to a Handler serially.
type Watcher struct {
	cfg    Config
	handle Handler
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	work    chan string
}

// New creates a Watcher.
func New(cfg Config, handle Handler) *Watcher {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultConfig().Settle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		handle:  handle,
		logger:  logger,
		pending: make(map[string]*time.Timer),
		work:    make(chan string, 64),
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()
	defer wg.Wait()

	w.logger.Info("watching for traffic files", "dir", w.cfg.Dir)

	if w.cfg.ProcessExisting {
		if err := w.enqueueExisting(); err != nil {
			w.logger.Warn("failed to scan existing files", "dir", w.cfg.Dir, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) enqueueExisting() error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		w.schedule(filepath.Join(w.cfg.Dir, name))
	}
	return nil
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string) {
	if _, err := convert.DetectFormat(path); err != nil {
		w.logger.Debug("ignoring unsupported file", "path", path)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.work <- path:
		default:
			w.logger.Warn("work queue full, dropping file", "path", path)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.work:
			if _, err := os.Stat(path); err != nil {
				w.logger.Debug("dropped file vanished", "path", path)
				continue
			}
			w.logger.Info("processing dropped file", "path", path)
			if err := w.handle(ctx, path); err != nil {
				w.logger.Warn("failed to process dropped file", "path", path, "error", err)
			}
		}
	}
}
