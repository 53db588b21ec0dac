package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/upi-payments/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run background jobs outside the HTTP server",
}

var sweepWorkerCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire payment submissions left unreviewed past their window",
	Long:  `Runs the expiry sweep on the configured cron schedule, or a single pass with --once.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

var (
	sweepOnce     bool
	sweepSchedule string
)

func startSweepWorker() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if sweepSchedule != "" {
		cfg.Sweep.Schedule = sweepSchedule
	}

	lg := logger.LoggerWrapper()

	app, err := buildApp(context.Background(), cfg, lg)
	if err != nil {
		fatal("failed to initialize dependencies", err)
	}

	if sweepOnce {
		n, err := app.Scheduler.RunExpirySweep(context.Background())
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		app.Drain(drainCtx)
		cancel()
		if err != nil {
			fatal("expiry sweep failed", err)
		}
		lg.Info("expiry sweep complete", "expired", n)
		return
	}

	if err := app.Scheduler.Start(); err != nil {
		app.Close()
		fatal("failed to start expiry sweep", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("sweep worker is running. Press Ctrl+C to stop.", "schedule", cfg.Sweep.Schedule)

	sig := <-sigChan
	lg.Info("received signal, shutting down sweep worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.Scheduler.Stop(ctx)
	app.Drain(ctx)
	lg.Info("sweep worker shutdown complete")
}

func init() {
	sweepWorkerCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single sweep and exit")
	sweepWorkerCmd.Flags().StringVar(&sweepSchedule, "schedule", "", "cron schedule with seconds (overrides config)")

	workerCmd.AddCommand(sweepWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
