package cmd

import (
	"errors"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/offsearch/internal/daemon"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/output"
)

func newStopCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		Long: `Ask the running daemon to shut down. Queued builds get the daemon's
grace period to finish before it exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			dcfg := daemonConfig(cfg)

			pid := daemon.NewPIDFile(dcfg.PIDPath)
			if err := pid.Signal(syscall.SIGTERM); err != nil {
				if errors.Is(err, daemon.ErrPIDFileNotFound) {
					out.Status("💤", "Daemon is not running")
					return nil
				}
				return offerr.InternalError("failed to signal daemon", err)
			}

			client := daemon.NewClient(dcfg)
			deadline := time.Now().Add(timeout)
			for client.IsRunning() {
				if time.Now().After(deadline) {
					out.Warningf("Daemon still running after %s", timeout)
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
			out.Success("Daemon stopped")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "How long to wait for the daemon to exit")

	return cmd
}
