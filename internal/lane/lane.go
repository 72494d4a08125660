// Package lane provides serial execution lanes. Each lane runs one task at a
// time on its own goroutine, in submission order. Separate lanes run
// independently of each other.
package lane

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// Kind names a class of work.
type Kind string

const (
	// KindBuild is the lane that mutates local index data.
	KindBuild Kind = "build"
	// KindSearch is the lane that reads local index data.
	KindSearch Kind = "search"
)

// Status is the lifecycle position of a submitted task.
type Status int

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDone
	StatusCancelled
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of lane counters.
type Stats struct {
	Kind      Kind   `json:"kind"`
	Queued    int    `json:"queued"`
	Running   string `json:"running,omitempty"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Cancelled uint64 `json:"cancelled"`
}

type task struct {
	id     uint64
	name   string
	ctx    context.Context
	cancel context.CancelFunc

	// run executes the body and completes the future.
	// It returns the body error so the lane can count failures.
	run func() error
	// abort completes the future without running the body.
	abort func(err error)

	// guarded by Lane.mu
	status Status
	elem   *list.Element
}

// Lane is a FIFO queue drained by a single worker goroutine.
type Lane struct {
	kind   Kind
	logger *slog.Logger

	base       context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	queue   *list.List
	running *task
	closed  bool
	seq     uint64
	stats   Stats

	wake chan struct{}
	done chan struct{}
}

// New creates a lane and starts its worker.
func New(kind Kind, logger *slog.Logger) *Lane {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	l := &Lane{
		kind:       kind,
		logger:     logger.With(slog.String("lane", string(kind))),
		base:       base,
		baseCancel: cancel,
		queue:      list.New(),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		stats:      Stats{Kind: kind},
	}
	go l.loop()
	return l
}

// Kind returns the class of work this lane runs.
func (l *Lane) Kind() Kind {
	return l.kind
}

// enqueue appends t and wakes the worker. Returns false if the lane is closed.
func (l *Lane) enqueue(t *task) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.seq++
	t.id = l.seq
	t.status = StatusQueued
	t.elem = l.queue.PushBack(t)
	l.stats.Submitted++
	l.mu.Unlock()

	l.signal()
	return true
}

func (l *Lane) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Lane) loop() {
	defer close(l.done)

	for {
		t := l.next()
		if t == nil {
			return
		}

		start := time.Now()
		l.logger.Debug("lane_task_started", slog.Uint64("task", t.id), slog.String("name", t.name))

		err := t.run()

		l.mu.Lock()
		l.running = nil
		switch {
		case t.ctx.Err() != nil && err != nil:
			t.status = StatusCancelled
			l.stats.Cancelled++
		case err != nil:
			t.status = StatusDone
			l.stats.Failed++
		default:
			t.status = StatusDone
			l.stats.Completed++
		}
		l.mu.Unlock()
		t.cancel()

		if err != nil {
			attrs := append([]any{slog.Uint64("task", t.id), slog.String("name", t.name)}, offerr.LogAttrs(err)...)
			l.logger.Warn("lane_task_failed", attrs...)
		} else {
			l.logger.Debug("lane_task_done",
				slog.Uint64("task", t.id),
				slog.String("name", t.name),
				slog.Duration("took", time.Since(start)))
		}
	}
}

// next blocks until a task is available and marks it running.
// Returns nil once the lane is closed and empty.
func (l *Lane) next() *task {
	l.mu.Lock()
	for l.queue.Len() == 0 {
		if l.closed {
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		<-l.wake
		l.mu.Lock()
	}
	front := l.queue.Front()
	l.queue.Remove(front)
	t := front.Value.(*task)
	t.elem = nil
	t.status = StatusRunning
	l.running = t
	l.mu.Unlock()
	return t
}

// cancel withdraws a queued task or signals a running one.
// Returns false if the task already finished.
func (l *Lane) cancel(t *task) bool {
	l.mu.Lock()
	switch t.status {
	case StatusQueued:
		l.queue.Remove(t.elem)
		t.elem = nil
		t.status = StatusCancelled
		l.stats.Cancelled++
		l.mu.Unlock()

		t.cancel()
		t.abort(offerr.Cancelled(t.name, nil))
		l.logger.Debug("lane_task_withdrawn", slog.Uint64("task", t.id), slog.String("name", t.name))
		return true
	case StatusRunning:
		l.mu.Unlock()
		t.cancel()
		return true
	default:
		l.mu.Unlock()
		return false
	}
}

func (l *Lane) status(t *task) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return t.status
}

// Len returns the number of queued (not yet started) tasks.
func (l *Lane) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Stats returns a snapshot of the lane counters.
func (l *Lane) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Queued = l.queue.Len()
	if l.running != nil {
		s.Running = l.running.name
	}
	return s
}

// Close stops accepting tasks and waits for queued tasks to finish.
// If ctx ends first, queued tasks are cancelled, the running task is
// signalled, and ctx.Err() is returned.
func (l *Lane) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()

	select {
	case <-l.done:
		l.baseCancel()
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	var pending []*task
	for e := l.queue.Front(); e != nil; e = e.Next() {
		t := e.Value.(*task)
		t.elem = nil
		t.status = StatusCancelled
		l.stats.Cancelled++
		pending = append(pending, t)
	}
	l.queue.Init()
	l.mu.Unlock()

	for _, t := range pending {
		t.cancel()
		t.abort(offerr.Cancelled(t.name, ctx.Err()))
	}
	l.baseCancel()
	l.signal()

	return ctx.Err()
}

// Done is closed once the worker has exited.
func (l *Lane) Done() <-chan struct{} {
	return l.done
}
