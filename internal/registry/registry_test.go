package registry

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/logging"
)

type plainHandle struct{ name string }

type mirroredHandle struct {
	name string
	// padding keeps the allocation out of the tiny allocator so weak
	// pointers are cleared promptly.
	_ [64]byte
}

func TestResolve_ConstructsOnceUnderConcurrency(t *testing.T) {
	// Given: an empty registry
	r := New(4, logging.Discard())
	var constructed atomic.Int32

	// When: 100 goroutines resolve the same name
	const workers = 100
	results := make([]*mirroredHandle, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			h, err := Resolve(r, "products", KindMirrored, func() (*mirroredHandle, error) {
				constructed.Add(1)
				return &mirroredHandle{name: "products"}, nil
			})
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}
	close(start)
	wg.Wait()

	// Then: exactly one handle was built and everyone got it
	assert.Equal(t, int32(1), constructed.Load())
	for _, h := range results {
		assert.Same(t, results[0], h)
	}
}

func TestResolve_TypeConflict(t *testing.T) {
	// Given: a name bound to the mirrored kind
	r := New(4, logging.Discard())
	h, err := Resolve(r, "products", KindMirrored, func() (*mirroredHandle, error) {
		return &mirroredHandle{name: "products"}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, h)

	// When: the same name is requested as a plain index
	called := false
	_, err = Resolve(r, "products", KindPlain, func() (*plainHandle, error) {
		called = true
		return &plainHandle{name: "products"}, nil
	})

	// Then: a type conflict is returned and nothing is built
	require.Error(t, err)
	assert.True(t, errors.Is(err, offerr.ErrTypeConflict))
	assert.False(t, called)

	oe, ok := offerr.As(err)
	require.True(t, ok)
	assert.Equal(t, "mirrored", oe.Details["existing_kind"])
	assert.Equal(t, "plain", oe.Details["requested_kind"])
}

func TestResolve_DifferentNamesAreIndependent(t *testing.T) {
	r := New(4, logging.Discard())

	a, err := Resolve(r, "a", KindPlain, func() (*plainHandle, error) { return &plainHandle{name: "a"}, nil })
	require.NoError(t, err)
	b, err := Resolve(r, "b", KindMirrored, func() (*mirroredHandle, error) { return &mirroredHandle{name: "b"}, nil })
	require.NoError(t, err)

	assert.Equal(t, "a", a.name)
	assert.Equal(t, "b", b.name)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	v, kind, ok := r.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, KindMirrored, kind)
	assert.Same(t, b, v)
}

func TestResolve_ConstructErrorIsNotRegistered(t *testing.T) {
	r := New(4, logging.Discard())
	boom := errors.New("no space")

	_, err := Resolve(r, "x", KindMirrored, func() (*mirroredHandle, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, _, ok := r.Lookup("x")
	assert.False(t, ok)

	// A later attempt with another kind is allowed.
	_, err = Resolve(r, "x", KindPlain, func() (*plainHandle, error) { return &plainHandle{}, nil })
	assert.NoError(t, err)
}

func resolveAndDrop(t *testing.T, r *Registry, name string, counter *atomic.Int32) {
	t.Helper()
	_, err := Resolve(r, name, KindMirrored, func() (*mirroredHandle, error) {
		counter.Add(1)
		return &mirroredHandle{name: name}, nil
	})
	require.NoError(t, err)
}

func TestResolve_ReclaimedHandleIsRebuiltWithSameKind(t *testing.T) {
	// Given: an unpinned registry whose only handle has been dropped
	r := New(0, logging.Discard())
	var constructed atomic.Int32
	resolveAndDrop(t, r, "products", &constructed)

	require.Eventually(t, func() bool {
		runtime.GC()
		_, _, ok := r.Lookup("products")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	// When: the name is requested with the other kind
	_, err := Resolve(r, "products", KindPlain, func() (*plainHandle, error) {
		return &plainHandle{}, nil
	})

	// Then: the remembered binding still produces a type conflict
	assert.True(t, errors.Is(err, offerr.ErrTypeConflict))

	// And: the original kind transparently rebuilds a fresh handle
	h, err := Resolve(r, "products", KindMirrored, func() (*mirroredHandle, error) {
		constructed.Add(1)
		return &mirroredHandle{name: "products"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "products", h.name)
	assert.Equal(t, int32(2), constructed.Load())
}

func TestSweep_DropsReclaimedEntries(t *testing.T) {
	r := New(0, logging.Discard())
	var constructed atomic.Int32
	resolveAndDrop(t, r, "gone", &constructed)
	kept, err := Resolve(r, "kept", KindPlain, func() (*plainHandle, error) { return &plainHandle{name: "kept"}, nil })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		runtime.GC()
		return r.Sweep() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"kept"}, r.Names())
	_, err = Resolve(r, "gone", KindPlain, func() (*plainHandle, error) { return &plainHandle{}, nil })
	assert.True(t, errors.Is(err, offerr.ErrTypeConflict))
	runtime.KeepAlive(kept)
}

func TestPins_KeepHandlesAlive(t *testing.T) {
	// Given: a registry pinning one handle
	r := New(1, logging.Discard())
	var constructed atomic.Int32
	resolveAndDrop(t, r, "hot", &constructed)

	// When: the caller drops its reference and GC runs
	for i := 0; i < 3; i++ {
		runtime.GC()
	}

	// Then: the pinned handle is still live
	_, _, ok := r.Lookup("hot")
	assert.True(t, ok)

	// And: once a newer handle takes its pin it can be reclaimed
	resolveAndDrop(t, r, "newer", &constructed)
	require.Eventually(t, func() bool {
		runtime.GC()
		_, _, ok := r.Lookup("hot")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPurge_ReleasesAllPins(t *testing.T) {
	r := New(8, logging.Discard())
	var constructed atomic.Int32
	resolveAndDrop(t, r, "a", &constructed)
	resolveAndDrop(t, r, "b", &constructed)

	r.Purge()
	require.Eventually(t, func() bool {
		runtime.GC()
		return len(r.Names()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartSweeper_StopsWithContext(t *testing.T) {
	r := New(0, logging.Discard())
	var constructed atomic.Int32
	resolveAndDrop(t, r, "tmp", &constructed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartSweeper(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		runtime.GC()
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.entries) == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Non-positive interval is a no-op.
	r.StartSweeper(ctx, 0)
}
