package lane

import (
	"context"
	"errors"
	"fmt"
	"sync"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// ErrPending is returned by Future.Result before the task has completed.
var ErrPending = errors.New("task has not completed")

// Future is the pending result of a task submitted to a lane.
type Future[T any] struct {
	lane *Lane
	task *task
	done chan struct{}

	mu        sync.Mutex
	completed bool
	value     T
	err       error
	callbacks []func(T, error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Submit queues fn on lane l and returns immediately.
//
// fn receives a context that is cancelled when the future is cancelled
// while running; fn must check it at safe points. An error or panic in fn
// is delivered to this future only; the lane moves on to the next task.
func Submit[T any](l *Lane, name string, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	ctx, cancel := context.WithCancel(l.base)

	t := &task{name: name, ctx: ctx, cancel: cancel}
	t.run = func() error {
		v, err := call(ctx, fn)
		if err != nil && ctx.Err() != nil && !errors.Is(err, offerr.ErrCancelled) {
			err = offerr.Cancelled(name, err)
		}
		f.complete(v, err)
		return err
	}
	t.abort = func(err error) {
		var zero T
		f.complete(zero, err)
	}

	f.lane = l
	f.task = t

	if !l.enqueue(t) {
		t.status = StatusDone
		cancel()
		t.abort(offerr.New(offerr.ErrCodeLaneClosed, fmt.Sprintf("%s lane is closed", l.kind), nil))
	}
	return f
}

// Failed returns an already-completed future carrying err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = offerr.New(offerr.ErrCodeTaskPanic, fmt.Sprintf("task panicked: %v", r), nil)
		}
	}()
	return fn(ctx)
}

func (f *Future[T]) complete(v T, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
}

// Done is closed when the task has completed, failed, or been cancelled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task completes or ctx ends. A ctx timeout does not
// cancel the task; call Cancel for that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.completed {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// OnComplete registers cb to run once with the outcome. If the future has
// already completed, cb runs immediately on the calling goroutine; otherwise
// it runs on the lane worker and must not block.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
}

// Cancel withdraws the task if it has not started, or signals its context
// if it is running. Returns false if the task had already finished.
func (f *Future[T]) Cancel() bool {
	if f.task == nil {
		return false
	}
	return f.lane.cancel(f.task)
}

// Status reports where the task is in its lifecycle.
func (f *Future[T]) Status() Status {
	if f.task == nil {
		return StatusDone
	}
	return f.lane.status(f.task)
}

// ID returns the lane-local sequence number (0 if never queued).
func (f *Future[T]) ID() uint64 {
	if f.task == nil {
		return 0
	}
	return f.task.id
}
