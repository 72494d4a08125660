package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/offsearch/internal/daemon"
	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	offset int
	format string // "text", "json"
	local  bool   // bypass the daemon
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <index> [query...]",
		Short: "Search an offline mirror",
		Long: `Search the local mirror of an index.

The search runs against the last built data and never touches the
network. Without a query the records are listed in ID order.`,
		Example: `  offsearch search products espresso
  offsearch search products "coffee grinder" --limit 5
  offsearch search products --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], strings.Join(args[1:], " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Search in this process even if the daemon is running")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, index, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return offerr.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup := cliLogger(cfg.Server.LogLevel)
	defer cleanup()

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Engine.MaxResults
	}
	params := daemon.SearchParams{Index: index, Query: query, Limit: limit, Offset: opts.offset}
	if err := params.Validate(); err != nil {
		return err
	}
	logger.Info("search_started", slog.String("index", index), slog.String("query", query), slog.Int("limit", limit))

	dc := daemon.NewClient(daemonConfig(cfg))
	if !opts.local && dc.IsRunning() {
		res, err := dc.Search(ctx, params)
		if err == nil {
			logger.Info("search_complete", slog.String("mode", "daemon"), slog.Int("hits", len(res.Hits)))
			return printResults(cmd, res, opts.format)
		}
		if offerr.GetCategory(err) == offerr.CategoryUsage {
			return err
		}
		logger.Warn("daemon_search_failed", offerr.LogAttrs(err)...)
	}

	client, err := openClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeClient(client) }()

	idx, err := client.GetOrCreateIndex(index)
	if err != nil {
		return err
	}
	f, err := idx.Search(ctx, params.EngineQuery())
	if err != nil {
		return err
	}
	res, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	logger.Info("search_complete", slog.String("mode", "local"), slog.Int("hits", len(res.Hits)))
	return printResults(cmd, res, opts.format)
}

func printResults(cmd *cobra.Command, res *engine.SearchResults, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	output.New(cmd.OutOrStdout()).Results(res)
	return nil
}
