package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_Lifecycle(t *testing.T) {
	// Given: three tracked indices
	p := NewProgressTracker()
	p.Track("products", "docs", "users")

	// When: one builds, one finishes, one fails
	p.Start("products")
	p.Start("docs")
	p.Finish("docs", nil)
	p.Finish("users", errors.New("disk full"))

	// Then: the snapshot counts each stage in tracking order
	st := p.Stats()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Done)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, []string{"products"}, st.Running)
	assert.InDelta(t, 2.0/3.0, st.Progress, 0.001)
	require.Len(t, st.Indices, 3)
	assert.Equal(t, "products", st.Indices[0].Name)
	assert.Equal(t, StageBuilding, st.Indices[0].Stage)
	assert.Equal(t, StageDone, st.Indices[1].Stage)
	assert.Equal(t, StageFailed, st.Indices[2].Stage)
}

func TestProgressTracker_TrackIsIdempotent(t *testing.T) {
	p := NewProgressTracker()
	p.Track("products")
	p.Start("products")

	p.Track("products")

	st := p.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, StageBuilding, st.Indices[0].Stage)
}

func TestProgressTracker_StartUnknownTracksIt(t *testing.T) {
	p := NewProgressTracker()

	p.Start("late")

	assert.Equal(t, 1, p.Stats().Total)
}

func TestProgressTracker_RestartClearsError(t *testing.T) {
	p := NewProgressTracker()
	p.Finish("products", errors.New("boom"))

	p.Start("products")

	st := p.Stats()
	assert.Equal(t, 0, st.Failed)
	assert.NoError(t, st.Indices[0].Err)
	assert.Empty(t, p.Failures())
}

func TestProgressTracker_Failures(t *testing.T) {
	p := NewProgressTracker()
	p.Finish("a", nil)
	p.Finish("b", errors.New("bad json"))

	failures := p.Failures()

	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Name)
	assert.EqualError(t, failures[0].Err, "bad json")
}

func TestProgressTracker_ETA(t *testing.T) {
	p := NewProgressTracker()
	assert.Zero(t, p.Stats().ETA, "no progress, no estimate")

	p.Track("a", "b")
	p.Finish("a", nil)
	p.Finish("b", nil)
	assert.Zero(t, p.Stats().ETA, "complete, no estimate")
}

func TestProgressTracker_SparklineRecordsFinishes(t *testing.T) {
	p := NewProgressTracker()
	assert.Equal(t, "   ", p.RenderSparkline(3))

	p.Finish("a", nil)

	assert.NotEqual(t, "   ", p.RenderSparkline(3))
}
