package bootstrap

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/lane"
)

// Tracker owns the bootstrap state of one index. While a bootstrap is in
// progress, further triggers return the in-flight future instead of
// starting another build.
type Tracker[T any] struct {
	index      Index
	dispatcher *Dispatcher
	shared     *Listeners
	local      Listeners
	logger     *slog.Logger

	mu       sync.Mutex
	state    State
	inflight *lane.Future[T]
}

// NewTracker creates an idle tracker. shared holds client-wide listeners and
// may be nil.
func NewTracker[T any](idx Index, d *Dispatcher, shared *Listeners, logger *slog.Logger) *Tracker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker[T]{
		index:      idx,
		dispatcher: d,
		shared:     shared,
		logger:     logger,
	}
}

// Listeners returns the per-index listener set.
func (t *Tracker[T]) Listeners() *Listeners {
	return &t.local
}

// State returns a snapshot of the bootstrap state.
func (t *Tracker[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// InProgress reports whether a bootstrap is queued or running.
func (t *Tracker[T]) InProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Phase == PhaseInProgress
}

// Trigger starts a bootstrap by calling start, unless one is already in
// progress. It returns the bootstrap's future and whether this call
// started it.
func (t *Tracker[T]) Trigger(start func() *lane.Future[T]) (*lane.Future[T], bool) {
	t.mu.Lock()
	if t.state.Phase == PhaseInProgress {
		f := t.inflight
		t.mu.Unlock()
		t.logger.Debug("bootstrap_already_running", slog.String("index", t.index.Name()))
		return f, false
	}

	t.state = State{
		Phase:     PhaseInProgress,
		Runs:      t.state.Runs + 1,
		StartedAt: time.Now(),
	}
	// Posted before the build is submitted so start always precedes finish.
	t.dispatcher.Post(t.deliverStart)

	f := start()
	t.inflight = f
	t.mu.Unlock()

	t.logger.Info("bootstrap_started", slog.String("index", t.index.Name()))

	f.OnComplete(func(_ T, err error) {
		t.finish(f, err)
	})
	return f, true
}

func (t *Tracker[T]) finish(f *lane.Future[T], err error) {
	t.mu.Lock()
	if t.inflight != f {
		t.mu.Unlock()
		return
	}
	t.inflight = nil
	t.state.Phase = PhaseFinished
	t.state.Err = err
	t.state.FinishedAt = time.Now()
	took := t.state.FinishedAt.Sub(t.state.StartedAt)
	t.dispatcher.Post(func() { t.deliverFinish(err) })
	t.mu.Unlock()

	if err != nil {
		attrs := append([]any{slog.String("index", t.index.Name()), slog.Duration("took", took)}, offerr.LogAttrs(err)...)
		t.logger.Warn("bootstrap_failed", attrs...)
	} else {
		t.logger.Info("bootstrap_finished", slog.String("index", t.index.Name()), slog.Duration("took", took))
	}
}

// listeners is evaluated at delivery time, so a listener added after a
// start was delivered sees the finish only.
func (t *Tracker[T]) listeners() []Listener {
	var out []Listener
	if t.shared != nil {
		out = t.shared.Snapshot()
	}
	return append(out, t.local.Snapshot()...)
}

func (t *Tracker[T]) deliverStart() {
	for _, l := range t.listeners() {
		t.notify(func() { l.BootstrapDidStart(t.index) })
	}
}

func (t *Tracker[T]) deliverFinish(err error) {
	for _, l := range t.listeners() {
		t.notify(func() { l.BootstrapDidFinish(t.index, err) })
	}
}

// notify isolates one listener so a panic does not starve the others.
func (t *Tracker[T]) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("bootstrap_listener_panic",
				slog.String("index", t.index.Name()),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
