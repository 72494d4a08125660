package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// SourceWatcher syncs targets whose source files change on disk.
type SourceWatcher struct {
	opts      Options
	logger    *slog.Logger
	fsWatcher *fsnotify.Watcher
	poller    *Poller
	debouncer *Debouncer

	mu      sync.Mutex
	targets map[string]map[string]Target // source path -> index name -> target
	dirs    map[string]int               // watched directory -> source files in it
	stopCh  chan struct{}
	stopped bool

	syncs  atomic.Uint64
	failed atomic.Uint64
}

// New creates a SourceWatcher. It uses fsnotify unless opts.ForcePolling is
// set or fsnotify fails to initialize.
func New(opts Options, logger *slog.Logger) (*SourceWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.WithDefaults()

	w := &SourceWatcher{
		opts:      opts,
		logger:    logger,
		debouncer: NewDebouncer(opts.DebounceWindow, logger),
		targets:   make(map[string]map[string]Target),
		dirs:      make(map[string]int),
		stopCh:    make(chan struct{}),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsw
		} else {
			logger.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		}
	}
	if w.fsWatcher == nil {
		w.poller = NewPoller()
	}

	return w, nil
}

// Watch syncs t whenever the file at path changes. A target may watch one
// file; watching again moves it to the new path.
func (w *SourceWatcher) Watch(t Target, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return offerr.New(offerr.ErrCodeSourceRead, "cannot resolve source path", err).
			WithDetail("path", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return offerr.New(offerr.ErrCodeLaneClosed, "watcher is stopped", nil)
	}

	w.unwatchLocked(t.Name())

	if w.fsWatcher != nil {
		dir := filepath.Dir(abs)
		if w.dirs[dir] == 0 {
			if err := w.fsWatcher.Add(dir); err != nil {
				return offerr.New(offerr.ErrCodeSourceRead, "cannot watch source directory", err).
					WithDetail("path", dir)
			}
		}
		w.dirs[dir]++
	} else {
		w.poller.Track(abs)
	}

	byName, ok := w.targets[abs]
	if !ok {
		byName = make(map[string]Target)
		w.targets[abs] = byName
	}
	byName[t.Name()] = t

	w.logger.Info("source_watch_added",
		slog.String("index", t.Name()),
		slog.String("path", abs),
		slog.String("watcher", w.WatcherType()))
	return nil
}

// WatchSource watches src when it is backed by a file. It reports whether
// src was watchable.
func (w *SourceWatcher) WatchSource(t Target, src engine.Source) (bool, error) {
	switch s := src.(type) {
	case engine.FileSource:
		return true, w.Watch(t, s.Path)
	case *engine.FileSource:
		return true, w.Watch(t, s.Path)
	default:
		return false, nil
	}
}

// Unwatch stops watching the source of the named index.
func (w *SourceWatcher) Unwatch(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unwatchLocked(name)
}

func (w *SourceWatcher) unwatchLocked(name string) {
	for path, byName := range w.targets {
		if _, ok := byName[name]; !ok {
			continue
		}
		delete(byName, name)
		if len(byName) > 0 {
			return
		}
		delete(w.targets, path)

		if w.fsWatcher == nil {
			w.poller.Untrack(path)
			return
		}
		dir := filepath.Dir(path)
		w.dirs[dir]--
		if w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			_ = w.fsWatcher.Remove(dir)
		}
		return
	}
}

// Watched returns the watched source paths, sorted.
func (w *SourceWatcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.targets))
	for p := range w.targets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Run processes file events until ctx is done or Stop is called.
func (w *SourceWatcher) Run(ctx context.Context) error {
	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
		tick     <-chan time.Time
	)
	if w.fsWatcher != nil {
		fsEvents = w.fsWatcher.Events
		fsErrors = w.fsWatcher.Errors
	} else {
		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-fsEvents:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(ev)
		case err, ok := <-fsErrors:
			if !ok {
				return nil
			}
			w.logger.Warn("source_watch_error", slog.String("error", err.Error()))
		case <-tick:
			for _, ev := range w.poller.Poll() {
				w.debouncer.Add(ev)
			}
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			w.dispatch(batch)
		}
	}
}

func (w *SourceWatcher) handleFsnotifyEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	_, watched := w.targets[path]
	w.mu.Unlock()
	if !watched {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

// dispatch syncs every target of each changed file. A deleted file leaves the
// current local data in place until the file returns.
func (w *SourceWatcher) dispatch(batch []FileEvent) {
	for _, ev := range batch {
		if ev.Operation == OpDelete {
			w.logger.Info("source_removed", slog.String("path", ev.Path))
			continue
		}

		w.mu.Lock()
		targets := make([]Target, 0, len(w.targets[ev.Path]))
		for _, t := range w.targets[ev.Path] {
			targets = append(targets, t)
		}
		w.mu.Unlock()

		for _, t := range targets {
			w.sync(t, ev)
		}
	}
}

func (w *SourceWatcher) sync(t Target, ev FileEvent) {
	f, err := t.Sync()
	if err != nil {
		if offerr.GetCode(err) == offerr.ErrCodeNotMirrored {
			w.logger.Debug("source_sync_skipped", slog.String("index", t.Name()))
			return
		}
		w.failed.Add(1)
		w.logger.Warn("source_sync_rejected", append([]any{slog.String("index", t.Name())}, offerr.LogAttrs(err)...)...)
		return
	}

	w.syncs.Add(1)
	w.logger.Info("source_sync_started",
		slog.String("index", t.Name()),
		slog.String("path", ev.Path),
		slog.String("op", ev.Operation.String()))

	f.OnComplete(func(stats engine.BuildStats, err error) {
		if err != nil {
			w.failed.Add(1)
			w.logger.Warn("source_sync_failed", append([]any{slog.String("index", t.Name())}, offerr.LogAttrs(err)...)...)
			return
		}
		w.logger.Info("source_sync_done",
			slog.String("index", t.Name()),
			slog.Int("documents", stats.Documents),
			slog.Duration("duration", stats.Duration))
	})
}

// Syncs returns how many syncs the watcher has started.
func (w *SourceWatcher) Syncs() uint64 { return w.syncs.Load() }

// Failures returns how many syncs were rejected or failed.
func (w *SourceWatcher) Failures() uint64 { return w.failed.Load() }

// WatcherType returns "fsnotify" or "polling".
func (w *SourceWatcher) WatcherType() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// Stop stops the watcher and releases resources. Safe to call multiple times.
func (w *SourceWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}
