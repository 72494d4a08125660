package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEngine counts searches and can hold them until released.
type countingEngine struct {
	searches atomic.Int32
	builds   atomic.Int32
	gate     chan struct{}
	err      error
}

func (c *countingEngine) Init(ctx context.Context, credential string) error { return nil }
func (c *countingEngine) Backend() Backend                                 { return "fake" }
func (c *countingEngine) Close() error                                     { return nil }

func (c *countingEngine) Build(ctx context.Context, indexName string, src Source) (BuildStats, error) {
	c.builds.Add(1)
	return BuildStats{Index: indexName}, nil
}

func (c *countingEngine) Search(ctx context.Context, indexName string, q Query) (*SearchResults, error) {
	c.searches.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return &SearchResults{Index: indexName, Query: q.Text, Total: int(c.searches.Load())}, nil
}

func TestCachedEngine_HitsCache(t *testing.T) {
	inner := &countingEngine{}
	c := NewCachedEngine(inner, 8)

	first, err := c.Search(context.Background(), "idx", Query{Text: "shoes", Limit: 10})
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "idx", Query{Text: "shoes", Limit: 10})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), inner.searches.Load())
	assert.Equal(t, 1, c.Len())

	// Different paging is a different entry.
	_, err = c.Search(context.Background(), "idx", Query{Text: "shoes", Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.searches.Load())
}

func TestCachedEngine_BuildInvalidatesOnlyThatIndex(t *testing.T) {
	inner := &countingEngine{}
	c := NewCachedEngine(inner, 8)
	ctx := context.Background()

	_, _ = c.Search(ctx, "a", Query{Text: "x"})
	_, _ = c.Search(ctx, "b", Query{Text: "x"})
	require.Equal(t, 2, c.Len())

	_, err := c.Build(ctx, "a", SliceSource{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, _ = c.Search(ctx, "a", Query{Text: "x"})
	_, _ = c.Search(ctx, "b", Query{Text: "x"})
	assert.Equal(t, int32(3), inner.searches.Load())
}

func TestCachedEngine_BuildDuringSearchIsNotCached(t *testing.T) {
	// Given: a search held inside the inner engine
	inner := &countingEngine{gate: make(chan struct{})}
	c := NewCachedEngine(inner, 8)
	done := make(chan *SearchResults, 1)
	go func() {
		res, err := c.Search(context.Background(), "idx", Query{Text: "same"})
		assert.NoError(t, err)
		done <- res
	}()
	require.Eventually(t, func() bool { return inner.searches.Load() == 1 }, time.Second, time.Millisecond)

	// When: the index is rebuilt before the search returns
	_, err := c.Build(context.Background(), "idx", SliceSource{})
	require.NoError(t, err)
	close(inner.gate)
	require.NotNil(t, <-done)

	// Then: the stale result was not cached
	assert.Zero(t, c.Len())
	_, err = c.Search(context.Background(), "idx", Query{Text: "same"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.searches.Load())
}

func TestCachedEngine_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("index missing")
	inner := &countingEngine{err: boom}
	c := NewCachedEngine(inner, 8)

	_, err := c.Search(context.Background(), "idx", Query{Text: "x"})
	assert.ErrorIs(t, err, boom)
	_, err = c.Search(context.Background(), "idx", Query{Text: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), inner.searches.Load())
	assert.Equal(t, 0, c.Len())
}

func TestCachedEngine_Passthrough(t *testing.T) {
	inner := &countingEngine{}
	c := NewCachedEngine(inner, 0)
	assert.Equal(t, Backend("fake"), c.Backend())
	assert.Same(t, inner, c.Unwrap())
	assert.NoError(t, c.Init(context.Background(), "VALID"))
	assert.NoError(t, c.Close())
}

func TestCachedEngine_RealBackend(t *testing.T) {
	e := newEngine(t, BackendSQLite)
	c := NewCachedEngine(e, 4)
	ctx := context.Background()

	_, err := c.Build(ctx, "products", catalog)
	require.NoError(t, err)
	res, err := c.Search(ctx, "products", Query{Text: "socks"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p4"}, ids(res))

	_, err = c.Build(ctx, "products", SliceSource{{ID: "z", Fields: map[string]any{"name": "Silk Socks"}}})
	require.NoError(t, err)
	res, err = c.Search(ctx, "products", Query{Text: "socks"})
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, ids(res))
}
