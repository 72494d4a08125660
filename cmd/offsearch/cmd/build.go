package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/offsearch/internal/bootstrap"
	"github.com/Aman-CERP/offsearch/internal/daemon"
	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/mirror"
	"github.com/Aman-CERP/offsearch/internal/output"
	"github.com/Aman-CERP/offsearch/internal/ui"
)

type buildOptions struct {
	mirrored bool
	local    bool
	noWait   bool
	plain    bool
	noColor  bool
}

// buildTarget is one index=source argument.
type buildTarget struct {
	Index  string
	Source string
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build <index>=<source> [<index>=<source>...]",
		Short: "Build offline mirrors from record files",
		Long: `Build or refresh offline mirrors from JSON or NDJSON record files.

Each argument names an index and the file to build it from. Indices are
built concurrently. When the daemon is running the builds are sent to it,
otherwise they run in this process and progress is shown until all finish.`,
		Example: `  offsearch build products=./products.json
  offsearch build products=./products.json docs=./docs.ndjson --mirrored
  offsearch build products=./products.json --local --plain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := parseTargets(args)
			if err != nil {
				return err
			}
			return runBuild(cmd.Context(), cmd, targets, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.mirrored, "mirrored", false, "Keep the indices in sync with their source files")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Build in this process even if the daemon is running")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "Return once the daemon has queued the builds")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain text progress instead of the interactive view")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

// parseTargets parses index=source arguments. Sources become absolute paths.
func parseTargets(args []string) ([]buildTarget, error) {
	seen := make(map[string]bool, len(args))
	targets := make([]buildTarget, 0, len(args))
	for _, arg := range args {
		name, src, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		src = strings.TrimSpace(src)
		if !ok || name == "" || src == "" {
			return nil, offerr.ValidationError(fmt.Sprintf("invalid build target %q", arg), nil).
				WithSuggestion("Use <index>=<path>, for example products=./products.json")
		}
		if seen[name] {
			return nil, offerr.ValidationError(fmt.Sprintf("index %q is listed twice", name), nil)
		}
		seen[name] = true

		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, offerr.New(offerr.ErrCodeSourceRead, "cannot resolve source path", err).WithDetail("path", src)
		}
		targets = append(targets, buildTarget{Index: name, Source: abs})
	}
	return targets, nil
}

func runBuild(ctx context.Context, cmd *cobra.Command, targets []buildTarget, opts buildOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup := cliLogger(cfg.Server.LogLevel)
	defer cleanup()

	dc := daemon.NewClient(daemonConfig(cfg))
	if !opts.local && dc.IsRunning() {
		logger.Info("build_using_daemon", slog.Int("indices", len(targets)))
		return runDaemonBuild(ctx, cmd, dc, targets, opts)
	}
	if opts.noWait {
		output.New(cmd.ErrOrStderr()).Warning("Daemon is not running; building in this process and waiting")
	}

	logger.Info("build_using_local", slog.Int("indices", len(targets)))
	client, err := openClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeClient(client) }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor),
	))
	return buildLocal(ctx, client, renderer, targets, opts.mirrored, logger)
}

// buildLocal builds every target on client, reporting progress to r.
func buildLocal(ctx context.Context, client *mirror.Client, r ui.Renderer, targets []buildTarget, mirrored bool, logger *slog.Logger) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = r.Stop() }()

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Index
	}
	r.Track(names...)
	client.AddBootstrapListener(r)
	defer client.RemoveBootstrapListener(r)

	start := time.Now()
	var (
		mu        sync.Mutex
		documents int
		failures  []error
	)

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, t := range targets {
		g.Go(func() error {
			stats, err := buildOne(ctx, client, t, mirrored)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("build_failed", append([]any{slog.String("index", t.Index)}, offerr.LogAttrs(err)...)...)
				failures = append(failures, fmt.Errorf("%s: %w", t.Index, err))
				return nil
			}
			documents += stats.Documents
			return nil
		})
	}
	_ = g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = client.Dispatcher().Flush(flushCtx)

	r.Complete(ui.CompletionStats{
		Indices:   len(targets),
		Documents: documents,
		Failed:    len(failures),
		Duration:  time.Since(start),
		Backend:   string(client.Engine().Backend()),
	})
	logger.Info("build_complete",
		slog.Int("indices", len(targets)),
		slog.Int("documents", documents),
		slog.Int("failed", len(failures)),
		slog.Duration("duration", time.Since(start)))

	return errors.Join(failures...)
}

func buildOne(ctx context.Context, client *mirror.Client, t buildTarget, mirrored bool) (engine.BuildStats, error) {
	idx, err := client.GetOrCreateIndex(t.Index)
	if err != nil {
		return engine.BuildStats{}, err
	}
	if mirrored {
		idx.SetMirrored(true)
	}
	f, err := idx.Build(ctx, engine.NewFileSource(t.Source))
	if err != nil {
		return engine.BuildStats{}, err
	}
	stats, err := f.Wait(ctx)
	awaitSettled(ctx, idx)
	return stats, err
}

// awaitSettled waits for the bootstrap bookkeeping that trails a build's
// future, so the finish event has been posted to listeners.
func awaitSettled(ctx context.Context, idx *mirror.MirroredIndex) {
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for idx.BootstrapState().Phase == bootstrap.PhaseInProgress {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// runDaemonBuild sends every target to the daemon concurrently.
func runDaemonBuild(ctx context.Context, cmd *cobra.Command, dc *daemon.Client, targets []buildTarget, opts buildOptions) error {
	out := output.New(cmd.OutOrStdout())
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			res, err := dc.Build(gctx, daemon.BuildParams{
				Index:    t.Index,
				Source:   t.Source,
				Mirrored: opts.mirrored,
				Wait:     !opts.noWait,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Errorf("%s: %v", t.Index, err)
				return fmt.Errorf("%s: %w", t.Index, err)
			}
			switch {
			case res.Queued:
				out.Statusf("⏳", "%s queued as task %d", res.Index, res.Task)
			default:
				out.Successf("%s: %d documents in %s (%s)", res.Index, res.Documents, res.Duration, res.Backend)
			}
			if res.Watched {
				out.Statusf("", "watching %s", t.Source)
			}
			return nil
		})
	}
	return g.Wait()
}
