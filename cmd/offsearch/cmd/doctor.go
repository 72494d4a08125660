package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/offsearch/internal/config"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/mirror"
	"github.com/Aman-CERP/offsearch/internal/preflight"
	"github.com/Aman-CERP/offsearch/pkg/version"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run system diagnostics to ensure offsearch can build and serve mirrors.

Checks:
  - Write access to the data and temp directories
  - Disk space (100MB minimum)
  - File descriptor limits (1024 minimum)
  - Engine backend and license configuration
  - Mirrors on disk built with another backend

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  offsearch doctor
  offsearch doctor --verbose
  offsearch doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status   string                  `json:"status"`
	Checks   []preflight.CheckResult `json:"checks"`
	Warnings []string                `json:"warnings,omitempty"`
	Errors   []string                `json:"errors,omitempty"`
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, err := preflightTarget(cfg)
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context(), target)

	if jsonOutput {
		report := doctorReport{Status: checker.SummaryStatus(results), Checks: results}
		for _, r := range results {
			if r.IsCritical() {
				report.Errors = append(report.Errors, r.Name+": "+r.Message)
			} else if r.Status != preflight.StatusPass {
				report.Warnings = append(report.Warnings, r.Name+": "+r.Message)
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if age := preflight.MarkerAge(target.RootDir); age > 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nLast successful check: %s ago\n", age.Round(time.Second))
		}
	}

	if checker.HasCriticalFailures(results) {
		return errSystemCheck()
	}
	return preflight.MarkPassed(target.RootDir, version.Version)
}

// preflightTarget resolves the directories a client built from cfg uses.
func preflightTarget(cfg *config.Config) (preflight.Target, error) {
	root, temp, err := mirror.ResolveDirs(clientOptions(cfg, nil))
	if err != nil {
		return preflight.Target{}, err
	}
	return preflight.Target{
		RootDir: root,
		TempDir: temp,
		Backend: cfg.Engine.Backend,
		License: cfg.Engine.License,
	}, nil
}

// checkOnce runs preflight before serving unless this release already
// passed it against the same data directory.
func checkOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	target, err := preflightTarget(cfg)
	if err != nil {
		return err
	}
	if !preflight.NeedsCheck(target.RootDir, version.Version) {
		return nil
	}

	checker := preflight.New(preflight.WithOutput(io.Discard))
	results := checker.RunAll(ctx, target)
	for _, r := range results {
		if r.Status != preflight.StatusPass {
			logger.Warn("preflight_check",
				slog.String("check", r.Name),
				slog.String("status", r.Status.String()),
				slog.String("message", r.Message))
		}
	}
	if checker.HasCriticalFailures(results) {
		return errSystemCheck()
	}

	if err := preflight.MarkPassed(target.RootDir, version.Version); err != nil {
		logger.Debug("preflight_mark_failed", slog.String("error", err.Error()))
	}
	logger.Info("preflight_passed", slog.String("status", checker.SummaryStatus(results)))
	return nil
}

func errSystemCheck() error {
	return offerr.ConfigError("system check failed", nil).
		WithSuggestion("Run 'offsearch doctor --verbose' for details")
}
