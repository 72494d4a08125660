// Package registry maps index names to live handles.
//
// Handles are held weakly: when the application drops every reference to a
// handle, the garbage collector may reclaim it and the next lookup builds a
// fresh one. The kind bound to a name is remembered across reclamation, so a
// name can never silently change capability set.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// Kind is the capability set bound to an index name.
type Kind string

const (
	// KindPlain is an online-only index.
	KindPlain Kind = "plain"
	// KindMirrored is an index with offline mirroring capability.
	KindMirrored Kind = "mirrored"
)

type entry struct {
	kind Kind
	// live returns the handle, or nil once it has been reclaimed.
	live func() any
}

// Registry is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]entry
	ledger  map[string]Kind
	pins    *lru.Cache[string, any]
}

// New creates a registry that keeps the pinSize most recently resolved
// handles strongly reachable. A pinSize of 0 disables pinning.
func New(pinSize int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:  logger,
		entries: make(map[string]entry),
		ledger:  make(map[string]Kind),
	}
	if pinSize > 0 {
		pins, err := lru.New[string, any](pinSize)
		if err == nil {
			r.pins = pins
		}
	}
	return r
}

// Resolve returns the live handle for name, or constructs and registers a
// new one. Concurrent calls for the same name construct at most once.
//
// If name was ever bound to a different kind, Resolve returns a
// TypeConflict error and construct is not called.
func Resolve[T any](r *Registry, name string, kind Kind, construct func() (*T, error)) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.ledger[name]; ok && bound != kind {
		return nil, offerr.TypeConflict(name, string(bound), string(kind))
	}

	if e, ok := r.entries[name]; ok {
		if v := e.live(); v != nil {
			h, ok := v.(*T)
			if !ok {
				return nil, offerr.TypeConflict(name, string(e.kind), string(kind))
			}
			r.pin(name, h)
			return h, nil
		}
	}

	h, err := construct()
	if err != nil {
		return nil, err
	}

	wp := weak.Make(h)
	r.entries[name] = entry{
		kind: kind,
		live: func() any {
			if p := wp.Value(); p != nil {
				return p
			}
			return nil
		},
	}
	r.ledger[name] = kind
	r.pin(name, h)

	r.logger.Debug("registry_handle_created", slog.String("index", name), slog.String("kind", string(kind)))
	return h, nil
}

// pin must be called with r.mu held.
func (r *Registry) pin(name string, h any) {
	if r.pins != nil {
		r.pins.Add(name, h)
	}
}

// Lookup returns the live handle for name without constructing one.
func (r *Registry) Lookup(name string) (any, Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, "", false
	}
	v := e.live()
	if v == nil {
		return nil, "", false
	}
	return v, e.kind, true
}

// Names returns the sorted names of all live handles.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.live() != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Purge releases every pinned handle.
func (r *Registry) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pins != nil {
		r.pins.Purge()
	}
}

// Sweep drops entries whose handle was reclaimed and returns how many were
// dropped. Kind bindings are kept.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for name, e := range r.entries {
		if e.live() == nil {
			delete(r.entries, name)
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Debug("registry_swept", slog.Int("dropped", dropped), slog.Int("live", len(r.entries)))
	}
	return dropped
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
