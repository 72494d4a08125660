package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_FailsForNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func newTestModel() (*buildModel, *ProgressTracker) {
	tracker := NewProgressTracker()
	m := newBuildModel(tracker, "Offline Mirror Build")
	m.styles = NoColorStyles()
	return m, tracker
}

func TestBuildModel_WaitingView(t *testing.T) {
	m, _ := newTestModel()

	view := m.View()

	assert.Contains(t, view, "Offline Mirror Build")
	assert.Contains(t, view, "Waiting for builds...")
}

func TestBuildModel_IndexBoard(t *testing.T) {
	// Given: one index in each stage
	m, tracker := newTestModel()
	tracker.Track("products", "docs", "users", "orders")
	tracker.Start("products")
	tracker.Finish("docs", nil)
	tracker.Finish("users", errors.New("bad json"))

	// When: rendered
	view := m.View()

	// Then: each index shows its marker and counts are shown
	assert.Contains(t, view, "products")
	assert.Contains(t, view, "● docs")
	assert.Contains(t, view, "✗ users")
	assert.Contains(t, view, "bad json")
	assert.Contains(t, view, "○ orders")
	assert.Contains(t, view, "2 / 4 indices")
	assert.Contains(t, view, "1 failed")
}

func TestBuildModel_CompleteQuits(t *testing.T) {
	// Given: a model receiving the completion message
	m, _ := newTestModel()

	// When: updated
	_, cmd := m.Update(completeMsg(CompletionStats{Indices: 2, Documents: 42, Duration: 3 * time.Second, Backend: "sqlite"}))

	// Then: it quits and renders the summary
	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Build Complete")
	assert.Contains(t, view, "42")
	assert.Contains(t, view, "sqlite")
}

func TestBuildModel_CompleteWithFailures(t *testing.T) {
	m, tracker := newTestModel()
	tracker.Finish("users", errors.New("bad json"))

	m.Update(completeMsg(CompletionStats{Indices: 1, Failed: 1}))

	view := m.View()
	assert.Contains(t, view, "Finished With Errors")
	assert.Contains(t, view, "users: bad json")
}

func TestBuildModel_QuitKey(t *testing.T) {
	m, _ := newTestModel()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", m.View())
}

func TestBuildModel_WindowResize(t *testing.T) {
	m, _ := newTestModel()

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 120, m.width)
	assert.Equal(t, 100, m.progressBar.Width)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{5 * time.Second, "5s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 15*time.Second, "2m 15s"},
		{time.Hour + 5*time.Minute, "1h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "abc...", truncateText("abcdefghij", 6))
	assert.Equal(t, "ab", truncateText("abcdef", 2))
}
