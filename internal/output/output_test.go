package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/offsearch/internal/engine"
)

func TestWriter_StatusIcons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"status", func(w *Writer) { w.Status("🔍", "Looking") }, "🔍 Looking\n"},
		{"status without icon", func(w *Writer) { w.Status("", "indented") }, "   indented\n"},
		{"success", func(w *Writer) { w.Successf("built %d", 3) }, "✅ built 3\n"},
		{"warning", func(w *Writer) { w.Warningf("daemon %s", "down") }, "⚠️  daemon down\n"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "x") }, "❌ failed: x\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Results(t *testing.T) {
	// Given: two hits with unsorted fields
	buf := &bytes.Buffer{}
	res := &engine.SearchResults{
		Index: "products",
		Query: "brew",
		Total: 5,
		Took:  3 * time.Millisecond,
		Hits: []engine.Hit{
			{ID: "1", Score: 1.5, Fields: map[string]any{"name": "Espresso", "brand": "Brewster"}},
			{ID: "2", Score: 0.5},
		},
	}

	// When: printed
	New(buf).Results(res)

	// Then: the header, ranks and sorted fields appear
	out := buf.String()
	assert.Contains(t, out, `2 of 5 results for "brew" in products (3ms)`)
	assert.Contains(t, out, " 1. 1  score 1.50")
	assert.Contains(t, out, " 2. 2  score 0.50")
	assert.Less(t, strings.Index(out, "brand: Brewster"), strings.Index(out, "name: Espresso"))
}

func TestWriter_ResultsEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Results(&engine.SearchResults{Index: "products", Query: "zzz"})
	assert.Equal(t, "🔍 No results for \"zzz\" in products\n", buf.String())

	buf.Reset()
	New(buf).Results(&engine.SearchResults{Index: "products"})
	assert.Equal(t, "🔍 Index \"products\" has no records\n", buf.String())
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abc…", clip("abcdef", 3))
	assert.Equal(t, "a b", clip("a\nb", 10))
}
