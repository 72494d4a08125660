// Package output provides consistent CLI output for commands that do not
// draw a TUI.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/offsearch/internal/engine"
)

// maxValueChars bounds how much of one field value is printed.
const maxValueChars = 120

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results prints search hits, one block per hit with its fields sorted by
// name.
func (w *Writer) Results(res *engine.SearchResults) {
	if len(res.Hits) == 0 {
		if res.Query == "" {
			w.Statusf("🔍", "Index %q has no records", res.Index)
		} else {
			w.Statusf("🔍", "No results for %q in %s", res.Query, res.Index)
		}
		return
	}

	if res.Query == "" {
		w.Statusf("🔍", "%d of %d records in %s (%s)", len(res.Hits), res.Total, res.Index, res.Took.Round(time.Microsecond))
	} else {
		w.Statusf("🔍", "%d of %d results for %q in %s (%s)", len(res.Hits), res.Total, res.Query, res.Index, res.Took.Round(time.Microsecond))
	}
	w.Newline()

	for i, h := range res.Hits {
		_, _ = fmt.Fprintf(w.out, "%2d. %s  score %.2f\n", i+1, h.ID, h.Score)
		keys := make([]string, 0, len(h.Fields))
		for k := range h.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w.out, "      %s: %s\n", k, clip(fmt.Sprint(h.Fields[k]), maxValueChars))
		}
	}
}

func clip(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
