package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/mirror"
	"github.com/Aman-CERP/offsearch/internal/watcher"
)

// Daemon serves a mirror Client over the socket. It implements RequestHandler.
type Daemon struct {
	cfg     Config
	client  *mirror.Client
	watcher *watcher.SourceWatcher
	server  *Server
	pid     *PIDFile
	logger  *slog.Logger

	// ctx outlives individual requests so builds queued without Wait keep running.
	ctx context.Context
}

// New creates a daemon around client. w may be nil to disable source watching.
func New(cfg Config, client *mirror.Client, w *watcher.SourceWatcher, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, offerr.ConfigError("invalid daemon configuration", err)
	}
	if client == nil {
		return nil, offerr.ValidationError("daemon requires a mirror client", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		cfg:     cfg,
		client:  client,
		watcher: w,
		server:  NewServer(cfg.SocketPath, cfg.Timeout, logger),
		pid:     NewPIDFile(cfg.PIDPath),
		logger:  logger,
		ctx:     context.Background(),
	}
	d.server.SetHandler(d)
	if w != nil {
		d.server.watcher = w.WatcherType()
	}
	return d, nil
}

// Run serves requests until ctx is cancelled, then drains the client's
// lanes for up to ShutdownGracePeriod.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pid.Release(); err != nil {
			d.logger.Warn("daemon_pid_release_failed", slog.String("error", err.Error()))
		}
	}()

	d.ctx = ctx
	if d.watcher != nil {
		go func() {
			if err := d.watcher.Run(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("source_watcher_stopped", slog.String("error", err.Error()))
			}
		}()
	}

	d.logger.Info("daemon_started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("backend", string(d.client.Engine().Backend())))

	err := d.server.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownGracePeriod)
	defer cancel()
	if cerr := d.client.Close(shutdownCtx); cerr != nil {
		d.logger.Warn("daemon_shutdown_incomplete", offerr.LogAttrs(cerr)...)
	}
	d.logger.Info("daemon_stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleSearch implements RequestHandler.
func (d *Daemon) HandleSearch(ctx context.Context, params SearchParams) (*engine.SearchResults, error) {
	idx, err := d.client.GetOrCreateIndex(params.Index)
	if err != nil {
		return nil, err
	}
	f, err := idx.Search(ctx, params.EngineQuery())
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

// HandleBuild implements RequestHandler.
func (d *Daemon) HandleBuild(ctx context.Context, params BuildParams) (*BuildResult, error) {
	idx, err := d.client.GetOrCreateIndex(params.Index)
	if err != nil {
		return nil, err
	}
	if params.Mirrored {
		idx.SetMirrored(true)
	}

	src := engine.NewFileSource(params.Source)
	buildCtx := d.ctx
	if params.Wait {
		buildCtx = ctx
	}
	f, err := idx.Build(buildCtx, src)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{Index: idx.Name(), Task: f.ID(), Queued: true}
	if d.watcher != nil && idx.Mirrored() {
		watched, err := d.watcher.WatchSource(idx, src)
		if err != nil {
			d.logger.Warn("source_watch_failed", append([]any{slog.String("index", idx.Name())}, offerr.LogAttrs(err)...)...)
		}
		result.Watched = watched && err == nil
	}

	if !params.Wait {
		return result, nil
	}

	stats, err := f.Wait(ctx)
	if err != nil {
		return nil, err
	}
	result.Queued = false
	result.Documents = stats.Documents
	result.Duration = stats.Duration.Round(time.Millisecond).String()
	result.Backend = string(stats.Backend)
	return result, nil
}

// Status implements RequestHandler.
func (d *Daemon) Status() mirror.Status {
	return d.client.Status()
}
