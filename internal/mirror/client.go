// Package mirror coordinates offline mirrors of remote search indices.
//
// A Client owns everything mirrored indices share: the engine activation
// gate, the two global work lanes (one build at a time, one search at a
// time), the name registry, and bootstrap notification delivery. Index
// handles are obtained from the client and are cheap to drop; asking for
// the same name again returns the live handle or a fresh equivalent one.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/offsearch/internal/activation"
	"github.com/Aman-CERP/offsearch/internal/bootstrap"
	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/lane"
	"github.com/Aman-CERP/offsearch/internal/registry"
)

// Options configures a Client. The zero value is usable.
type Options struct {
	// Engine is the local engine. Nil creates one for Backend under the
	// root data directory.
	Engine engine.Engine
	// Backend is used when Engine is nil.
	Backend engine.Backend
	// CacheSize wraps a created engine with a query cache of that many
	// results. Zero disables the cache.
	CacheSize int
	// DefaultLimit is the result count for queries that do not set one.
	DefaultLimit int

	// Gate guards engine activation. Nil creates a gate for Engine. A
	// shared gate activates this client's engine along with the others
	// attached to it.
	Gate *activation.Gate

	// Paths resolves platform directories. Nil means OSPaths.
	Paths Paths
	// RootDir overrides the root data directory (FilesRoot/mirrors).
	RootDir string
	// TempDir overrides the temporary directory (CacheDir).
	TempDir string

	// Remote serves online searches. Nil makes online search fail with
	// a RemoteUnavailable error.
	Remote Remote

	// PinSize is how many recently used handles stay strongly reachable.
	PinSize int
	// SweepInterval is how often reclaimed handles are dropped from the
	// registry. Zero disables background sweeping.
	SweepInterval time.Duration

	// Dispatcher delivers bootstrap notifications. Nil starts a dedicated
	// delivery goroutine owned by the client.
	Dispatcher *bootstrap.Dispatcher

	Logger *slog.Logger
}

// Client is the entry point for mirrored and online indices.
type Client struct {
	logger *slog.Logger

	engine     engine.Engine
	gate       *activation.Gate
	scheduler  *lane.Scheduler
	registry   *registry.Registry
	dispatcher *bootstrap.Dispatcher
	listeners  bootstrap.Listeners
	remote     Remote

	statesMu sync.Mutex
	states   map[string]*indexState

	rootDir string
	tempDir string

	ownsDispatcher bool
	detachGate     func()
	stopSweeper    context.CancelFunc
}

// ResolveDirs returns the data and temp directories a client built from
// opts would use, without creating them.
func ResolveDirs(opts Options) (rootDir, tempDir string, err error) {
	paths := opts.Paths
	if paths == nil {
		paths = OSPaths{}
	}

	rootDir = opts.RootDir
	if rootDir == "" {
		files, err := paths.FilesRoot()
		if err != nil {
			return "", "", offerr.New(offerr.ErrCodeDataDir, "cannot resolve files directory", err)
		}
		rootDir = filepath.Join(files, "mirrors")
	}
	tempDir = opts.TempDir
	if tempDir == "" {
		cache, err := paths.CacheDir()
		if err != nil {
			return "", "", offerr.New(offerr.ErrCodeDataDir, "cannot resolve cache directory", err)
		}
		tempDir = cache
	}
	return rootDir, tempDir, nil
}

// New creates a client, resolving and creating its data directories.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rootDir, tempDir, err := ResolveDirs(opts)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{rootDir, tempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, offerr.New(offerr.ErrCodeDataDir, "cannot create data directory", err).WithDetail("path", dir)
		}
	}

	eng := opts.Engine
	if eng == nil {
		created, err := engine.New(engine.Options{
			Root:         rootDir,
			Backend:      opts.Backend,
			DefaultLimit: opts.DefaultLimit,
			Logger:       logger,
		})
		if err != nil {
			return nil, offerr.ConfigError("invalid engine backend", err)
		}
		eng = created
		if opts.CacheSize > 0 {
			eng = engine.NewCachedEngine(eng, opts.CacheSize)
		}
	}

	gate := opts.Gate
	detachGate := func() {}
	if gate == nil {
		gate = activation.NewGate(eng, logger)
	} else {
		detach, err := gate.Attach(context.Background(), eng)
		if err != nil {
			if opts.Engine == nil {
				_ = eng.Close()
			}
			return nil, err
		}
		detachGate = detach
	}

	c := &Client{
		logger:     logger,
		engine:     eng,
		gate:       gate,
		scheduler:  lane.NewScheduler(logger),
		registry:   registry.New(opts.PinSize, logger),
		dispatcher: opts.Dispatcher,
		remote:     opts.Remote,
		states:     make(map[string]*indexState),
		rootDir:    rootDir,
		tempDir:    tempDir,
		detachGate: detachGate,
	}
	if c.dispatcher == nil {
		c.dispatcher = bootstrap.NewDispatcher(logger)
		c.ownsDispatcher = true
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	c.stopSweeper = cancel
	c.registry.StartSweeper(sweepCtx, opts.SweepInterval)

	logger.Debug("mirror_client_created",
		slog.String("root_dir", rootDir),
		slog.String("temp_dir", tempDir),
		slog.String("backend", string(eng.Backend())))
	return c, nil
}

// EnableOfflineMode activates the local engine with credential. Calling it
// again with the same credential is a no-op.
func (c *Client) EnableOfflineMode(ctx context.Context, credential string) error {
	return c.gate.Activate(ctx, credential)
}

// IsOfflineEnabled reports whether the local engine has been activated.
func (c *Client) IsOfflineEnabled() bool {
	return c.gate.IsActivated()
}

// GetOrCreateIndex returns the mirrored index named name.
//
// It fails with a TypeConflict error if name is already bound to an
// online-only index.
func (c *Client) GetOrCreateIndex(name string) (*MirroredIndex, error) {
	if err := engine.ValidateIndexName(name); err != nil {
		return nil, err
	}
	return registry.Resolve(c.registry, name, registry.KindMirrored, func() (*MirroredIndex, error) {
		return newMirroredIndex(c, c.stateFor(name)), nil
	})
}

// stateFor returns the state shared by every handle ever created for name,
// so a handle rebuilt after reclamation picks up where the last one was.
func (c *Client) stateFor(name string) *indexState {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()
	st, ok := c.states[name]
	if !ok {
		st = newIndexState(c, name)
		c.states[name] = st
	}
	return st
}

// GetOnlineIndex returns the online-only index named name.
//
// It fails with a TypeConflict error if name is already bound to a
// mirrored index.
func (c *Client) GetOnlineIndex(name string) (*OnlineIndex, error) {
	if err := engine.ValidateIndexName(name); err != nil {
		return nil, err
	}
	return registry.Resolve(c.registry, name, registry.KindPlain, func() (*OnlineIndex, error) {
		return &OnlineIndex{name: name, client: c}, nil
	})
}

// NewDetachedIndex returns a mirrored handle that is not registered under
// its name. Two detached handles for one name do not share bootstrap state.
func (c *Client) NewDetachedIndex(name string) (*MirroredIndex, error) {
	if err := engine.ValidateIndexName(name); err != nil {
		return nil, err
	}
	return newMirroredIndex(c, newIndexState(c, name)), nil
}

// LookupIndex returns the live mirrored handle for name without creating one.
func (c *Client) LookupIndex(name string) (*MirroredIndex, bool) {
	v, kind, ok := c.registry.Lookup(name)
	if !ok || kind != registry.KindMirrored {
		return nil, false
	}
	idx, ok := v.(*MirroredIndex)
	return idx, ok
}

// RootDataDirectory is where index data is stored, one subdirectory per index.
func (c *Client) RootDataDirectory() string {
	return c.rootDir
}

// TemporaryDirectory is for scratch files the platform may purge.
func (c *Client) TemporaryDirectory() string {
	return c.tempDir
}

// AddBootstrapListener registers l for bootstrap events of every index.
func (c *Client) AddBootstrapListener(l bootstrap.Listener) {
	c.listeners.Add(l)
}

// RemoveBootstrapListener unregisters l.
func (c *Client) RemoveBootstrapListener(l bootstrap.Listener) {
	c.listeners.Remove(l)
}

// Dispatcher returns the bootstrap notification dispatcher.
func (c *Client) Dispatcher() *bootstrap.Dispatcher {
	return c.dispatcher
}

// Scheduler returns the client's work lanes.
func (c *Client) Scheduler() *lane.Scheduler {
	return c.scheduler
}

// Engine returns the local engine.
func (c *Client) Engine() engine.Engine {
	return c.engine
}

// Close drains both lanes, stops notification delivery it owns, and closes
// the engine. Queued work still runs unless ctx ends first.
func (c *Client) Close(ctx context.Context) error {
	c.stopSweeper()
	c.detachGate()

	var errs []error
	if err := c.scheduler.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.ownsDispatcher {
		if err := c.dispatcher.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	c.registry.Purge()

	c.logger.Debug("mirror_client_closed")
	return errors.Join(errs...)
}
