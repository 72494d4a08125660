package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrDispatcherRunning is returned when Run is called twice.
var ErrDispatcherRunning = errors.New("dispatcher is already running")

// Dispatcher delivers notifications in FIFO order on one goroutine.
type Dispatcher struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool

	running atomic.Bool
	wake    chan struct{}
	done    chan struct{}
}

// NewDispatcher returns a dispatcher with its own delivery goroutine.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	d := NewManualDispatcher(logger)
	go func() {
		_ = d.Run(context.Background())
	}()
	return d
}

// NewManualDispatcher returns a dispatcher that delivers nothing until the
// caller donates a goroutine with Run.
func NewManualDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn for delivery. Returns false after Close.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Run delivers queued notifications until Close has been called and the
// queue is empty, or until ctx ends.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDispatcherRunning
	}
	defer close(d.done)

	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return nil
			}
			select {
			case <-d.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, fn := range batch {
			d.invoke(fn)
		}
	}
}

func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("bootstrap_listener_panic", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Flush blocks until everything posted before the call has been delivered.
func (d *Dispatcher) Flush(ctx context.Context) error {
	delivered := make(chan struct{})
	if !d.Post(func() { close(delivered) }) {
		return nil
	}
	select {
	case <-delivered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting notifications and waits for Run to drain the queue.
// If Run was never started, pending notifications are dropped.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	if !d.running.Load() {
		return nil
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
