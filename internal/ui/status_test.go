package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/offsearch/internal/lane"
	"github.com/Aman-CERP/offsearch/internal/mirror"
)

func sampleStatus() StatusInfo {
	return StatusInfo{
		Daemon:  "running",
		Watcher: "fsnotify",
		Mirror: mirror.Status{
			OfflineEnabled: true,
			Backend:        "sqlite",
			RootDir:        "/data/mirrors",
			Indices: []mirror.IndexStatus{
				{
					Name:       "products",
					Kind:       "mirrored",
					Mirrored:   true,
					Offline:    true,
					Bootstrap:  "finished",
					Runs:       2,
					FinishedAt: time.Now().Add(-5 * time.Minute),
					Source:     "/data/products.json",
					OnDisk:     "sqlite",
				},
				{Name: "docs", Kind: "mirrored", Bootstrap: "finished", LastError: "bad json"},
			},
			Lanes: []lane.Stats{{Kind: lane.KindBuild, Queued: 1, Running: "sync products", Completed: 4}},
		},
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a status with one healthy and one failed index
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendered
	require.NoError(t, r.Render(sampleStatus()))

	// Then: every section is present
	out := buf.String()
	assert.Contains(t, out, "Offline mode: enabled")
	assert.Contains(t, out, "Backend:      sqlite")
	assert.Contains(t, out, "Daemon:       running")
	assert.Contains(t, out, "Watcher:      fsnotify")
	assert.Contains(t, out, "products  offline  mirrored")
	assert.Contains(t, out, "Last build: 5 minutes ago (2 runs)")
	assert.Contains(t, out, "docs  error")
	assert.Contains(t, out, "Error:      bad json")
	assert.Contains(t, out, "(running sync products)")
}

func TestStatusRenderer_NoIndices(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.Render(StatusInfo{}))

	assert.Contains(t, buf.String(), "Offline mode: disabled")
	assert.Contains(t, buf.String(), "No indices loaded.")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.RenderJSON(sampleStatus()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "running", decoded["daemon"])
	m := decoded["mirror"].(map[string]any)
	assert.Equal(t, true, m["offline_enabled"])
	assert.Len(t, m["indices"], 2)
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", formatTime(now))
	assert.Equal(t, "1 minute ago", formatTime(now.Add(-90*time.Second)))
	assert.Equal(t, "3 hours ago", formatTime(now.Add(-3*time.Hour-time.Minute)))
	assert.Equal(t, "2 days ago", formatTime(now.Add(-49*time.Hour)))

	old := time.Date(2020, 1, 2, 3, 4, 0, 0, time.Local)
	assert.Equal(t, "2020-01-02 03:04", formatTime(old))
}
