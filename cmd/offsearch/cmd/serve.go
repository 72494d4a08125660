package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/offsearch/internal/config"
	"github.com/Aman-CERP/offsearch/internal/daemon"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/logging"
	"github.com/Aman-CERP/offsearch/internal/mcp"
	"github.com/Aman-CERP/offsearch/internal/mirror"
	"github.com/Aman-CERP/offsearch/internal/watcher"
)

type serveOptions struct {
	mcp       bool
	watch     bool
	noSocket  bool
	skipCheck bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background daemon",
		Long: `Run the daemon that keeps mirrors open and answers build and search
requests from other offsearch commands over a Unix socket.

With --watch, mirrored indices are rebuilt when their source files
change. With --mcp, the same mirrors are also served to AI clients over
MCP on stdin/stdout.`,
		Example: `  offsearch serve
  offsearch serve --watch
  offsearch serve --mcp --no-socket`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.noSocket && !opts.mcp {
				return offerr.ValidationError("--no-socket needs --mcp", nil)
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.mcp, "mcp", false, "Also serve MCP over stdio")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Watch sources of mirrored indices (overrides watch.enabled)")
	cmd.Flags().BoolVar(&opts.noSocket, "no-socket", false, "Do not listen on the daemon socket (MCP only)")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip the first-run system check")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries JSON-RPC in MCP mode, so nothing may log there.
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	if opts.mcp {
		logCfg = logging.StdioSafeConfig(cfg.Server.LogLevel)
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := notifyContext(ctx)
	defer stop()

	if !opts.skipCheck {
		if err := checkOnce(ctx, cfg, logger); err != nil {
			return err
		}
	}

	client, err := openClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var w *watcher.SourceWatcher
	if opts.watch || cfg.Watch.Enabled {
		w, err = watcher.New(watcher.Options{
			DebounceWindow: config.Duration(cfg.Watch.Debounce, watcher.DefaultOptions().DebounceWindow),
		}, logger)
		if err != nil {
			_ = closeClient(client)
			return err
		}
	}

	var mcpServer *mcp.Server
	if opts.mcp {
		mcpServer, err = mcp.NewServer(client, cfg, logger)
		if err != nil {
			_ = closeClient(client)
			return err
		}
		if w != nil {
			mcpServer.SetWatcher(w)
		}
	}

	if opts.noSocket {
		return serveMCPOnly(ctx, mcpServer, client, w, cfg, logger)
	}

	d, err := daemon.New(daemonConfig(cfg), client, w, logger)
	if err != nil {
		_ = closeClient(client)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.Run(gctx)
	})
	if mcpServer != nil {
		g.Go(func() error {
			defer cancel()
			return ignoreShutdown(mcpServer.Serve(gctx, cfg.Server.Transport))
		})
	}
	return g.Wait()
}

// serveMCPOnly runs the MCP server without the socket daemon. It owns the
// client and watcher lifecycles that the daemon would otherwise manage.
func serveMCPOnly(ctx context.Context, s *mcp.Server, client *mirror.Client, w *watcher.SourceWatcher, cfg *config.Config, logger *slog.Logger) error {
	if w != nil {
		go func() { _ = w.Run(ctx) }()
		defer w.Stop()
	}

	err := ignoreShutdown(s.Serve(ctx, cfg.Server.Transport))

	if cerr := closeClient(client); cerr != nil {
		logger.Warn("client_close_failed", offerr.LogAttrs(cerr)...)
	}
	return err
}

// ignoreShutdown treats a cancelled context as a clean exit.
func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
