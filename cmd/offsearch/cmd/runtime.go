package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Aman-CERP/offsearch/internal/config"
	"github.com/Aman-CERP/offsearch/internal/daemon"
	"github.com/Aman-CERP/offsearch/internal/engine"
	"github.com/Aman-CERP/offsearch/internal/logging"
	"github.com/Aman-CERP/offsearch/internal/mirror"
)

// closeTimeout bounds how long a command waits for queued work on exit.
const closeTimeout = 30 * time.Second

// loadConfig loads configuration for the working directory.
func loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return config.Load(dir)
}

// cliLogger returns a file-only logger so command output stays clean. The
// debug logger wins when --debug is set.
func cliLogger(level string) (*slog.Logger, func()) {
	if debugMode {
		return slog.Default(), func() {}
	}
	logger, cleanup, err := logging.Setup(logging.StdioSafeConfig(level))
	if err != nil {
		return logging.Discard(), func() {}
	}
	return logger, cleanup
}

// clientOptions maps configuration onto mirror client options.
func clientOptions(cfg *config.Config, logger *slog.Logger) mirror.Options {
	return mirror.Options{
		Backend:       engine.Backend(strings.ToLower(cfg.Engine.Backend)),
		CacheSize:     cfg.Engine.CacheSize,
		DefaultLimit:  cfg.Engine.MaxResults,
		RootDir:       cfg.Data.RootDir,
		TempDir:       cfg.Data.TempDir,
		PinSize:       cfg.Registry.PinSize,
		SweepInterval: config.Duration(cfg.Registry.SweepInterval, time.Minute),
		Logger:        logger,
	}
}

// openClient creates a mirror client and enables offline mode with the
// configured license.
func openClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mirror.Client, error) {
	client, err := mirror.New(clientOptions(cfg, logger))
	if err != nil {
		return nil, err
	}
	if err := client.EnableOfflineMode(ctx, cfg.Engine.License); err != nil {
		_ = closeClient(client)
		return nil, err
	}
	return client, nil
}

// closeClient drains the client's lanes, bounded by closeTimeout.
func closeClient(c *mirror.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.Close(ctx)
}

// daemonConfig derives the daemon settings from cfg.
func daemonConfig(cfg *config.Config) daemon.Config {
	return daemon.FromSettings(cfg.Daemon)
}

// notifyContext cancels ctx on interrupt or termination.
func notifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
