package watcher

import (
	"time"

	"github.com/Aman-CERP/offsearch/internal/engine"
	"github.com/Aman-CERP/offsearch/internal/lane"
)

// Operation represents a change to a watched source file.
type Operation int

const (
	// OpCreate indicates the file appeared.
	OpCreate Operation = iota
	// OpModify indicates the file contents changed.
	OpModify
	// OpDelete indicates the file was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a change to a watched source file.
type FileEvent struct {
	// Path is the absolute path of the source file.
	Path string

	// Operation is the type of change.
	Operation Operation

	// Timestamp is when the change was detected.
	Timestamp time.Time
}

// Target is an index that can be refreshed from its last source.
// *mirror.MirroredIndex satisfies it.
type Target interface {
	Name() string
	Sync() (*lane.Future[engine.BuildStats], error)
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is how long to wait for a file to settle before syncing.
	// Default: 500ms
	DebounceWindow time.Duration

	// PollInterval is the stat interval when falling back to polling.
	// Default: 2s
	PollInterval time.Duration

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
}

// DefaultOptions returns default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 500 * time.Millisecond,
		PollInterval:   2 * time.Second,
	}
}

// WithDefaults fills zero fields with defaults.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	return o
}
