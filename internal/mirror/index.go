package mirror

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/offsearch/internal/bootstrap"
	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/lane"
)

// MirroredIndex is an index whose data can be built and searched locally.
//
// All builds of a client run one at a time on the build lane and all
// local searches one at a time on the search lane; a long build never
// blocks searches.
type MirroredIndex struct {
	name   string
	client *Client
	state  *indexState
	logger *slog.Logger
}

// indexState outlives the handles of one name. It is also the Index that
// bootstrap listeners receive, so notifications do not keep a handle alive.
type indexState struct {
	name     string
	tracker  *bootstrap.Tracker[engine.BuildStats]
	mirrored atomic.Bool

	mu     sync.Mutex
	source engine.Source
}

func newIndexState(c *Client, name string) *indexState {
	st := &indexState{name: name}
	st.tracker = bootstrap.NewTracker[engine.BuildStats](st, c.dispatcher, &c.listeners, c.logger)
	return st
}

func (s *indexState) Name() string { return s.name }

func newMirroredIndex(c *Client, st *indexState) *MirroredIndex {
	return &MirroredIndex{
		name:   st.name,
		client: c,
		state:  st,
		logger: c.logger.With(slog.String("index", st.name)),
	}
}

// Name returns the index name.
func (m *MirroredIndex) Name() string { return m.name }

// Client returns the owning client.
func (m *MirroredIndex) Client() *Client { return m.client }

// Mirrored reports whether automatic refresh is enabled. New handles start
// with mirroring off.
func (m *MirroredIndex) Mirrored() bool { return m.state.mirrored.Load() }

// SetMirrored enables or disables automatic refresh.
func (m *MirroredIndex) SetMirrored(on bool) { m.state.mirrored.Store(on) }

// IsOffline reports whether local searches can run: the engine is active
// and a bootstrap has succeeded.
func (m *MirroredIndex) IsOffline() bool {
	return m.client.IsOfflineEnabled() && m.state.tracker.State().Succeeded()
}

// DataDirectory is where this index's engine data lives.
func (m *MirroredIndex) DataDirectory() string {
	return filepath.Join(m.client.rootDir, m.name)
}

// Source returns the source of the last build, or nil.
func (m *MirroredIndex) Source() engine.Source {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	return m.state.source
}

func (m *MirroredIndex) setSource(src engine.Source) {
	m.state.mu.Lock()
	m.state.source = src
	m.state.mu.Unlock()
}

// BootstrapState returns a snapshot of this index's bootstrap.
func (m *MirroredIndex) BootstrapState() bootstrap.State {
	return m.state.tracker.State()
}

// AddBootstrapListener registers l for this index only.
func (m *MirroredIndex) AddBootstrapListener(l bootstrap.Listener) {
	m.state.tracker.Listeners().Add(l)
}

// RemoveBootstrapListener unregisters a per-index listener.
func (m *MirroredIndex) RemoveBootstrapListener(l bootstrap.Listener) {
	m.state.tracker.Listeners().Remove(l)
}

// Build queues a rebuild of the local data from src on the build lane.
//
// The first build of an index is its bootstrap: listeners are told when it
// starts and finishes. Cancelling ctx cancels the queued or running build.
// Build fails immediately with NotActivated before EnableOfflineMode.
func (m *MirroredIndex) Build(ctx context.Context, src engine.Source) (*lane.Future[engine.BuildStats], error) {
	if err := m.client.gate.Check("build"); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, offerr.ValidationError("build source is nil", nil)
	}
	m.setSource(src)

	if m.state.tracker.State().Phase == bootstrap.PhaseIdle {
		f, started := m.state.tracker.Trigger(m.submitBuild("bootstrap", src))
		if started {
			bindContext(ctx, f)
		}
		return f, nil
	}

	f := m.submitBuild("build", src)()
	bindContext(ctx, f)
	return f, nil
}

// Bootstrap forces a refresh from src, or from the last source if src is
// nil. While a bootstrap is in progress it returns that bootstrap's future.
func (m *MirroredIndex) Bootstrap(src engine.Source) (*lane.Future[engine.BuildStats], error) {
	if err := m.client.gate.Check("bootstrap"); err != nil {
		return nil, err
	}
	if src == nil {
		src = m.Source()
	}
	if src == nil {
		return nil, offerr.ValidationError("no source to bootstrap from", nil).
			WithDetail("index", m.name).
			WithSuggestion("Build the index from a source first")
	}
	m.setSource(src)

	f, _ := m.state.tracker.Trigger(m.submitBuild("bootstrap", src))
	return f, nil
}

// Sync refreshes a mirrored index from its last source. It fails with
// NotMirrored when automatic refresh is off.
func (m *MirroredIndex) Sync() (*lane.Future[engine.BuildStats], error) {
	if !m.Mirrored() {
		return nil, offerr.New(offerr.ErrCodeNotMirrored, "index is not mirrored", nil).
			WithDetail("index", m.name).
			WithSuggestion("Enable mirroring on the index first")
	}
	return m.Bootstrap(nil)
}

func (m *MirroredIndex) submitBuild(kind string, src engine.Source) func() *lane.Future[engine.BuildStats] {
	return func() *lane.Future[engine.BuildStats] {
		f := lane.Submit(m.client.scheduler.Build(), kind+" "+m.name, func(ctx context.Context) (engine.BuildStats, error) {
			return m.client.engine.Build(ctx, m.name, src)
		})
		m.logger.Debug("build_queued",
			slog.String("kind", kind),
			slog.Uint64("task", f.ID()),
			slog.String("source", src.Describe()))
		return f
	}
}

// Search queues a local search on the search lane. Cancelling ctx cancels
// the queued or running search. Search fails immediately with NotActivated
// before EnableOfflineMode.
func (m *MirroredIndex) Search(ctx context.Context, q engine.Query) (*lane.Future[*engine.SearchResults], error) {
	if err := m.client.gate.Check("search"); err != nil {
		return nil, err
	}
	f := lane.Submit(m.client.scheduler.Search(), "search "+m.name, func(ctx context.Context) (*engine.SearchResults, error) {
		return m.client.engine.Search(ctx, m.name, q)
	})
	bindContext(ctx, f)
	return f, nil
}

// bindContext cancels f when ctx ends before f completes.
func bindContext[T any](ctx context.Context, f *lane.Future[T]) {
	if ctx == nil || ctx.Done() == nil {
		return
	}
	stop := context.AfterFunc(ctx, func() { f.Cancel() })
	f.OnComplete(func(T, error) { stop() })
}

// Remote serves searches against the hosted index.
type Remote interface {
	Search(ctx context.Context, index string, q engine.Query) (*engine.SearchResults, error)
}

// RemoteFunc adapts a function to Remote.
type RemoteFunc func(ctx context.Context, index string, q engine.Query) (*engine.SearchResults, error)

func (f RemoteFunc) Search(ctx context.Context, index string, q engine.Query) (*engine.SearchResults, error) {
	return f(ctx, index, q)
}

// OnlineIndex is an index without offline capability. Its searches go to
// the client's Remote.
type OnlineIndex struct {
	name   string
	client *Client
}

// Name returns the index name.
func (o *OnlineIndex) Name() string { return o.name }

// Client returns the owning client.
func (o *OnlineIndex) Client() *Client { return o.client }

// Search runs q against the remote index.
func (o *OnlineIndex) Search(ctx context.Context, q engine.Query) (*engine.SearchResults, error) {
	if o.client.remote == nil {
		return nil, offerr.New(offerr.ErrCodeRemoteUnavailable, "no remote search service is configured", nil).
			WithDetail("index", o.name)
	}
	return o.client.remote.Search(ctx, o.name, q)
}
