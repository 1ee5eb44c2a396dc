package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/droverhq/drover/internal/cmd/client"
	serverrun "github.com/droverhq/drover/internal/cmd/server"
	cfgpkg "github.com/droverhq/drover/internal/config"
	pebblestore "github.com/droverhq/drover/internal/storage/pebble"
	logpkg "github.com/droverhq/drover/pkg/log"
)

func main() {
	// Respect DROVER_LOG_LEVEL for both CLI and server start output
	level := os.Getenv("DROVER_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "drover",
		Short: "Drover task engine CLI",
		Long:  "Drover hands agent tasks to worker fleets. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start drover server (HTTP API)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			orchestrator, _ := cmd.Flags().GetString("orchestrator")
			sweep, _ := cmd.Flags().GetBool("lease-sweep")
			leaseTTLMs, _ := cmd.Flags().GetInt64("lease-ttl-ms")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if orchestrator != "" {
				cfg.Orchestrator = orchestrator
			}
			if cmd.Flags().Changed("lease-sweep") {
				cfg.Lease.SweepEnabled = sweep
			}
			if leaseTTLMs > 0 {
				cfg.Lease.TTLMs = leaseTTLMs
			}
			if logLevel != "" {
				_ = os.Setenv("DROVER_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("DROVER_LOG_FORMAT", logFormat)
			}
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				HTTPAddr:      httpAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverStartCmd.Flags().String("config", os.Getenv("DROVER_CONFIG"), "Config file path (JSON or YAML)")
	serverStartCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	serverStartCmd.Flags().String("log-level", os.Getenv("DROVER_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("DROVER_LOG_FORMAT"), "Log format: text|json (default text)")
	serverStartCmd.Flags().String("orchestrator", "", "Orchestrator identity rows are claimed for (overrides config)")
	serverStartCmd.Flags().Bool("lease-sweep", false, "Reopen abandoned claims in the background")
	serverStartCmd.Flags().Int64("lease-ttl-ms", 0, "Claim lease TTL in ms (with --lease-sweep)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// task commands
	rootCmd.AddCommand(clientcmd.NewTaskCommand(apiURL))

	// worker commands
	rootCmd.AddCommand(clientcmd.NewWorkerCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("DROVER_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
