package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Aman-CERP/offsearch/internal/bootstrap"
)

// PlainRenderer writes one line per bootstrap event (for CI and pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	tracker *ProgressTracker
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		tracker: NewProgressTracker(),
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// Track implements Renderer.
func (r *PlainRenderer) Track(names ...string) {
	r.tracker.Track(names...)
}

// BootstrapDidStart implements bootstrap.Listener.
func (r *PlainRenderer) BootstrapDidStart(idx bootstrap.Index) {
	r.tracker.Start(idx.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, "[%s] %s\n", StageBuilding.Icon(), idx.Name())
}

// BootstrapDidFinish implements bootstrap.Listener.
func (r *PlainRenderer) BootstrapDidFinish(idx bootstrap.Index, err error) {
	r.tracker.Finish(idx.Name(), err)
	st := r.tracker.Stats()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "[%s] %s: %v\n", StageFailed.Icon(), idx.Name(), err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "[%s] %s %d/%d\n", StageDone.Icon(), idx.Name(), st.Done+st.Failed, st.Total)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d %s, %d documents in %s",
		stats.Indices, plural(stats.Indices, "index", "indices"), stats.Documents, stats.Duration.Round(100*time.Millisecond))
	if stats.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed)", stats.Failed)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Backend != "" {
		_, _ = fmt.Fprintf(r.out, "Backend: %s\n", stats.Backend)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

var _ Renderer = (*PlainRenderer)(nil)
