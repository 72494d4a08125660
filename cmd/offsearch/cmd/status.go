package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/offsearch/internal/daemon"
	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/mirror"
	"github.com/Aman-CERP/offsearch/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show mirror and daemon status",
		Long: `Show whether offline mode is enabled, which mirrors exist, their
last build, and how busy the build and search lanes are.

When the daemon is running its live state is shown. Otherwise the
mirrors found on disk are listed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := collectStatus(cmd.Context())
			if err != nil {
				return err
			}
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func collectStatus(ctx context.Context) (ui.StatusInfo, error) {
	cfg, err := loadConfig()
	if err != nil {
		return ui.StatusInfo{}, err
	}
	logger, cleanup := cliLogger(cfg.Server.LogLevel)
	defer cleanup()

	dc := daemon.NewClient(daemonConfig(cfg))
	if dc.IsRunning() {
		res, err := dc.Status(ctx)
		if err == nil {
			return ui.StatusInfo{
				Mirror:  res.Mirror,
				Daemon:  fmt.Sprintf("running (pid %d, up %s)", res.PID, res.Uptime),
				Watcher: res.Watcher,
			}, nil
		}
		logger.Warn("daemon_status_failed", offerr.LogAttrs(err)...)
	}

	client, err := mirror.New(clientOptions(cfg, logger))
	if err != nil {
		return ui.StatusInfo{}, err
	}
	defer func() { _ = closeClient(client) }()

	if cfg.Engine.License != "" {
		if err := client.EnableOfflineMode(ctx, cfg.Engine.License); err != nil {
			logger.Warn("status_activation_failed", offerr.LogAttrs(err)...)
		}
	}

	held, err := loadOnDisk(client)
	if err != nil {
		return ui.StatusInfo{}, err
	}
	st := client.Status()
	logger.Debug("status_collected", slog.Int("indices", len(held)))
	return ui.StatusInfo{Mirror: st, Daemon: "not running"}, nil
}

// loadOnDisk registers every index directory that holds engine data. The
// returned handles keep the indices reachable until the status is taken.
func loadOnDisk(client *mirror.Client) ([]*mirror.MirroredIndex, error) {
	entries, err := os.ReadDir(client.RootDataDirectory())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, offerr.New(offerr.ErrCodeDataDir, "cannot list data directory", err).
			WithDetail("path", client.RootDataDirectory())
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if engine.DetectBackend(filepath.Join(client.RootDataDirectory(), e.Name())) == "" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	held := make([]*mirror.MirroredIndex, 0, len(names))
	for _, name := range names {
		idx, err := client.GetOrCreateIndex(name)
		if err != nil {
			continue
		}
		held = append(held, idx)
	}
	return held, nil
}
