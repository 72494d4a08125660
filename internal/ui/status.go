package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/offsearch/internal/mirror"
)

// StatusInfo is what the status command shows.
type StatusInfo struct {
	Mirror  mirror.Status `json:"mirror"`
	Daemon  string        `json:"daemon"`
	Watcher string        `json:"watcher,omitempty"`
}

// StatusRenderer displays mirror status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to the terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	st := info.Mirror
	offline := r.renderStatus("disabled")
	if st.OfflineEnabled {
		offline = r.renderStatus("enabled")
	}

	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Offline Search Status"))
	_, _ = fmt.Fprintf(r.out, "  Offline mode: %s\n", offline)
	_, _ = fmt.Fprintf(r.out, "  Backend:      %s\n", st.Backend)
	_, _ = fmt.Fprintf(r.out, "  Data:         %s\n", st.RootDir)
	if info.Daemon != "" {
		_, _ = fmt.Fprintf(r.out, "  Daemon:       %s\n", r.renderStatus(info.Daemon))
	}
	if info.Watcher != "" {
		_, _ = fmt.Fprintf(r.out, "  Watcher:      %s\n", info.Watcher)
	}
	_, _ = fmt.Fprintln(r.out)

	if len(st.Indices) == 0 {
		_, _ = fmt.Fprintln(r.out, r.styles.Dim.Render("  No indices loaded."))
	} else {
		_, _ = fmt.Fprintln(r.out, "  Indices:")
		for _, idx := range st.Indices {
			r.renderIndex(idx)
		}
	}

	if len(st.Lanes) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Lanes:")
		for _, l := range st.Lanes {
			_, _ = fmt.Fprintf(r.out, "    %-7s %d queued, %d completed, %d failed, %d cancelled",
				l.Kind, l.Queued, l.Completed, l.Failed, l.Cancelled)
			if l.Running != "" {
				_, _ = fmt.Fprintf(r.out, " %s", r.styles.Label.Render("(running "+l.Running+")"))
			}
			_, _ = fmt.Fprintln(r.out)
		}
	}
	return nil
}

func (r *StatusRenderer) renderIndex(idx mirror.IndexStatus) {
	state := "online"
	switch {
	case idx.Offline:
		state = "offline"
	case idx.LastError != "":
		state = "error"
	case idx.Bootstrap == "in_progress":
		state = "building"
	}

	_, _ = fmt.Fprintf(r.out, "    %s  %s", r.styles.Active.Render(idx.Name), r.renderStatus(state))
	if idx.Mirrored {
		_, _ = fmt.Fprint(r.out, r.styles.Label.Render("  mirrored"))
	}
	_, _ = fmt.Fprintln(r.out)

	if idx.Source != "" {
		_, _ = fmt.Fprintf(r.out, "      Source:     %s\n", idx.Source)
	}
	if !idx.FinishedAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "      Last build: %s (%d %s)\n",
			formatTime(idx.FinishedAt), idx.Runs, plural(idx.Runs, "run", "runs"))
	}
	if idx.OnDisk != "" {
		_, _ = fmt.Fprintf(r.out, "      On disk:    %s\n", idx.OnDisk)
	}
	if idx.LastError != "" {
		_, _ = fmt.Fprintf(r.out, "      Error:      %s\n", r.styles.Error.Render(idx.LastError))
	}
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "enabled", "offline", "running":
		return r.styles.Success.Render(status)
	case "disabled", "building", "stopped", "not running":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		return fmt.Sprintf("%d %s ago", mins, plural(mins, "minute", "minutes"))
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour", "hours"))
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d %s ago", days, plural(days, "day", "days"))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
