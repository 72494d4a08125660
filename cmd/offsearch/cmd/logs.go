package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/logging"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	index   string
	noColor bool
	file    string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View offsearch logs",
		Long: `View and tail the offsearch log file.

By default the last 50 lines are shown. Use -f to follow new entries as
the daemon writes them.`,
		Example: `  offsearch logs
  offsearch logs -f --index products
  offsearch logs --level warn -n 200
  offsearch logs --filter bootstrap_`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this pattern (regex)")
	cmd.Flags().StringVar(&opts.index, "index", "", "Only entries about this index")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file path (default ~/.offsearch/logs/offsearch.log)")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	var pattern *regexp.Regexp
	if opts.filter != "" {
		p, err := regexp.Compile(opts.filter)
		if err != nil {
			return offerr.ValidationError("invalid filter pattern", err)
		}
		pattern = p
	}

	path := opts.file
	if path == "" {
		path = logging.DefaultLogPath()
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		Index:   opts.index,
		NoColor: opts.noColor,
	}, cmd.OutOrStdout())

	stderr := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(stderr, "Log file: %s\n---\n", path)

	if !opts.follow {
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return offerr.New(offerr.ErrCodeSourceRead, "cannot read log file", err).
				WithDetail("path", path).
				WithSuggestion("Run a command with --debug or start the daemon to create it")
		}
		viewer.Print(entries)
		return nil
	}

	ctx, cancel := notifyContext(ctx)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "\n---\nStopped.")
			return nil
		}
	}
}
