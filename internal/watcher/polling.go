package watcher

import (
	"os"
	"sync"
	"time"
)

// Poller detects changes to a fixed set of files by comparing stat results.
// It backs SourceWatcher when fsnotify cannot be used (network mounts,
// some container volumes).
type Poller struct {
	mu    sync.Mutex
	files map[string]fileSnapshot
}

type fileSnapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

// NewPoller creates an empty poller.
func NewPoller() *Poller {
	return &Poller{files: make(map[string]fileSnapshot)}
}

// Track starts polling path, using its current state as the baseline.
func (p *Poller) Track(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[path]; ok {
		return
	}
	p.files[path] = snapshot(path)
}

// Untrack stops polling path.
func (p *Poller) Untrack(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, path)
}

// Poll stats every tracked file and returns an event for each one whose
// state changed since the previous poll.
func (p *Poller) Poll() []FileEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var events []FileEvent
	now := time.Now()
	for path, prev := range p.files {
		cur := snapshot(path)
		var op Operation
		switch {
		case !prev.exists && cur.exists:
			op = OpCreate
		case prev.exists && !cur.exists:
			op = OpDelete
		case cur.exists && (!cur.modTime.Equal(prev.modTime) || cur.size != prev.size):
			op = OpModify
		default:
			continue
		}
		p.files[path] = cur
		events = append(events, FileEvent{Path: path, Operation: op, Timestamp: now})
	}
	return events
}

func snapshot(path string) fileSnapshot {
	info, err := os.Stat(path)
	if err != nil {
		return fileSnapshot{}
	}
	return fileSnapshot{exists: true, modTime: info.ModTime(), size: info.Size()}
}
