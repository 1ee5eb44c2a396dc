package client

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/worker"
	logpkg "github.com/droverhq/drover/pkg/log"
)

// NewWorkerCommand constructs the `worker` command group.
func NewWorkerCommand(apiURL func() string) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a polling worker against a drover server",
	}
	workerCmd.AddCommand(newWorkerRunCommand(apiURL))
	return workerCmd
}

// newWorkerRunCommand constructs `worker run -- <command> [args...]`. The
// command is executed once per claim with the claim JSON on stdin; its
// stdout becomes the final result payload.
func newWorkerRunCommand(apiURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Poll for tasks and execute a command per claim",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			consumer, _ := cmd.Flags().GetString("consumer")
			tenant, _ := cmd.Flags().GetString("tenant")
			limit, _ := cmd.Flags().GetInt("limit")
			intervalMs, _ := cmd.Flags().GetInt("interval-ms")
			watchMs, _ := cmd.Flags().GetInt("watch-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")

			logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: logLevel, Format: "text"})
			if err != nil {
				return err
			}

			handler := &worker.ExecHandler{Name: args[0], Args: args[1:]}
			p := worker.New(NewAPI(apiURL()), handler, worker.Options{
				Consumer:      consumer,
				Tenant:        tenant,
				Limit:         limit,
				Interval:      time.Duration(intervalMs) * time.Millisecond,
				WatchInterval: time.Duration(watchMs) * time.Millisecond,
				Logger:        logger,
			})
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "consumer:", p.Consumer())
			err = p.Run(cmd.Context())
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().String("consumer", "", "Consumer id (generated when empty)")
	cmd.Flags().String("tenant", "", "Restrict claims to one tenant")
	cmd.Flags().Int("limit", 1, "Claim batch size per poll")
	cmd.Flags().Int("interval-ms", 7000, "Poll interval in ms")
	cmd.Flags().Int("watch-interval-ms", 5000, "Cancellation check interval in ms")
	cmd.Flags().String("log-level", "info", "Log level: debug|info|warn|error")
	return cmd
}
