package mirror

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/Aman-CERP/offsearch/internal/engine"
	"github.com/Aman-CERP/offsearch/internal/lane"
	"github.com/Aman-CERP/offsearch/internal/registry"
)

// IndexStatus describes one registered index.
type IndexStatus struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Mirrored   bool           `json:"mirrored"`
	Offline    bool           `json:"offline"`
	Bootstrap  string         `json:"bootstrap,omitempty"`
	Runs       int            `json:"runs,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`
	Source     string         `json:"source,omitempty"`
	DataDir    string         `json:"data_dir,omitempty"`
	OnDisk     engine.Backend `json:"on_disk,omitempty"`
}

// Status is a snapshot of a client.
type Status struct {
	OfflineEnabled bool          `json:"offline_enabled"`
	Backend        string        `json:"backend"`
	RootDir        string        `json:"root_dir"`
	TempDir        string        `json:"temp_dir"`
	Indices        []IndexStatus `json:"indices"`
	Lanes          []lane.Stats  `json:"lanes"`
}

// Status reports every mirrored index the client knows, including ones
// whose handle was reclaimed, every live online index, and both lanes.
func (c *Client) Status() Status {
	st := Status{
		OfflineEnabled: c.IsOfflineEnabled(),
		Backend:        string(c.engine.Backend()),
		RootDir:        c.rootDir,
		TempDir:        c.tempDir,
		Indices:        []IndexStatus{},
		Lanes:          c.scheduler.Stats(),
	}

	c.statesMu.Lock()
	states := make([]*indexState, 0, len(c.states))
	for _, is := range c.states {
		states = append(states, is)
	}
	c.statesMu.Unlock()
	for _, is := range states {
		st.Indices = append(st.Indices, c.indexStatus(is))
	}

	for _, name := range c.registry.Names() {
		v, kind, ok := c.registry.Lookup(name)
		if !ok {
			continue
		}
		if idx, isOnline := v.(*OnlineIndex); isOnline {
			st.Indices = append(st.Indices, IndexStatus{Name: idx.name, Kind: string(kind)})
		}
	}
	sort.Slice(st.Indices, func(i, j int) bool { return st.Indices[i].Name < st.Indices[j].Name })
	return st
}

// Status describes this index.
func (m *MirroredIndex) Status() IndexStatus {
	return m.client.indexStatus(m.state)
}

func (c *Client) indexStatus(is *indexState) IndexStatus {
	bs := is.tracker.State()
	dataDir := filepath.Join(c.rootDir, is.name)
	st := IndexStatus{
		Name:       is.name,
		Kind:       string(registry.KindMirrored),
		Mirrored:   is.mirrored.Load(),
		Offline:    c.IsOfflineEnabled() && bs.Succeeded(),
		Bootstrap:  bs.Phase.String(),
		Runs:       bs.Runs,
		FinishedAt: bs.FinishedAt,
		DataDir:    dataDir,
		OnDisk:     engine.DetectBackend(dataDir),
	}
	if bs.Err != nil {
		st.LastError = bs.Err.Error()
	}
	is.mu.Lock()
	src := is.source
	is.mu.Unlock()
	if src != nil {
		st.Source = src.Describe()
	}
	return st
}
