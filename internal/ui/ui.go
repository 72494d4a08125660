// Package ui renders bootstrap progress and mirror status in the terminal.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/offsearch/internal/bootstrap"
)

// Stage is where one index is in its build.
type Stage int

const (
	// StagePending means the build has not started yet.
	StagePending Stage = iota
	// StageBuilding means the bootstrap build is running.
	StageBuilding
	// StageDone means the build finished successfully.
	StageDone
	// StageFailed means the build finished with an error.
	StageFailed
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StagePending:
		return "Pending"
	case StageBuilding:
		return "Building"
	case StageDone:
		return "Done"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StagePending:
		return "WAIT"
	case StageBuilding:
		return "BUILD"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAIL"
	default:
		return "???"
	}
}

// Finished reports whether the stage is terminal.
func (s Stage) Finished() bool {
	return s == StageDone || s == StageFailed
}

// CompletionStats summarizes a finished build run.
type CompletionStats struct {
	Indices   int
	Documents int
	Failed    int
	Duration  time.Duration
	Backend   string
}

// Renderer displays bootstrap progress. It is a bootstrap.Listener, so it
// can be registered on a mirror client directly.
type Renderer interface {
	bootstrap.Listener

	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Track announces indices that are about to be built.
	Track(names ...string)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the panel title shown by the TUI.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output: output,
		Title:  "Offline Mirror Build",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// text renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
