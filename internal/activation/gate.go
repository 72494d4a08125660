// Package activation guards the local search engine behind a one-time,
// credential-based initialization.
package activation

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
)

// Initializer performs the engine's one-time initialization.
type Initializer interface {
	Init(ctx context.Context, credential string) error
}

// InitializerFunc adapts a function to Initializer.
type InitializerFunc func(ctx context.Context, credential string) error

// Init implements Initializer.
func (f InitializerFunc) Init(ctx context.Context, credential string) error {
	return f(ctx, credential)
}

// Gate records whether the engine has been activated. The transition from
// not-activated to activated happens at most once and is never undone.
//
// One gate can activate several engines: every attached initializer runs
// with the activation credential, including ones attached after activation.
type Gate struct {
	logger *slog.Logger

	// mu serializes Activate and Attach; activated is read without it.
	mu          sync.Mutex
	inits       []attached
	nextID      uint64
	activated   atomic.Bool
	fingerprint [sha256.Size]byte
	credential  string
}

// NewGate creates a gate that activates through init. A nil init creates a
// gate with no engine attached yet.
func NewGate(init Initializer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{logger: logger}
	if init != nil {
		g.inits = append(g.inits, attached{init: init})
	}
	return g
}

type attached struct {
	id   uint64
	init Initializer
}

// Attach adds init to the engines the gate activates and returns a func
// that detaches it again. When the gate is already activated, init runs
// now with the activation credential and a failure leaves it detached.
func (g *Gate) Attach(ctx context.Context, init Initializer) (detach func(), err error) {
	if init == nil {
		return nil, offerr.ActivationError("no engine initializer to attach", nil)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.activated.Load() {
		if err := g.initOne(ctx, init, g.credential); err != nil {
			return nil, err
		}
	}
	g.nextID++
	id := g.nextID
	g.inits = append(g.inits, attached{id: id, init: init})
	return func() { g.detach(id) }, nil
}

func (g *Gate) detach(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, a := range g.inits {
		if a.id == id {
			g.inits = append(g.inits[:i:i], g.inits[i+1:]...)
			return
		}
	}
}

// Activate initializes every attached engine with credential.
//
// Once activated, calling again with the same credential is a no-op. A
// different credential is rejected with ERR_302_CREDENTIAL_MISMATCH and
// leaves the engines untouched. A failed initialization leaves the gate
// unactivated so the call can be retried.
func (g *Gate) Activate(ctx context.Context, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return offerr.New(offerr.ErrCodeCredentialEmpty, "license credential is empty", nil).
			WithSuggestion("set engine.license or OFFSEARCH_LICENSE")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	sum := sha256.Sum256([]byte(credential))
	if g.activated.Load() {
		if sum != g.fingerprint {
			return offerr.New(offerr.ErrCodeCredentialMismatch,
				"engine already activated with a different credential", nil)
		}
		return nil
	}

	if len(g.inits) == 0 {
		return offerr.ActivationError("no engine initializer configured", nil)
	}
	for _, a := range g.inits {
		if err := g.initOne(ctx, a.init, credential); err != nil {
			return err
		}
	}

	g.fingerprint = sum
	g.credential = credential
	g.activated.Store(true)
	g.logger.Info("engine_activated", slog.Int("engines", len(g.inits)))
	return nil
}

func (g *Gate) initOne(ctx context.Context, init Initializer, credential string) error {
	if err := init.Init(ctx, credential); err != nil {
		g.logger.Warn("engine_activation_failed", offerr.LogAttrs(err)...)
		if oe, ok := offerr.As(err); ok && oe.Category == offerr.CategoryActivation {
			return err
		}
		return offerr.ActivationError("engine initialization failed", err)
	}
	return nil
}

// IsActivated reports whether Activate has succeeded.
func (g *Gate) IsActivated() bool {
	return g.activated.Load()
}

// Check returns a NotActivated error naming operation when the gate is closed.
func (g *Gate) Check(operation string) error {
	if g.activated.Load() {
		return nil
	}
	return offerr.NotActivated(operation)
}
