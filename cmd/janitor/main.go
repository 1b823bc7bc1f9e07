package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/services"
)

// The janitor is not a Cloud Function: it runs as a small long-lived
// process (VM or container) and sweeps retired job records on a schedule.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// .env is for local runs; deployments configure the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration.", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	janitor, err := services.NewJanitor(ctx)
	if err != nil {
		slog.Error("Failed to initialize janitor.", "error", err)
		os.Exit(1)
	}

	// One sweep at startup, then on the configured schedule.
	if err := janitor.Sweep(ctx); err != nil {
		slog.Error("Startup sweep failed.", "error", err)
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Retention.CleanupSchedule, func() {
		if err := janitor.Sweep(context.Background()); err != nil {
			slog.Error("Scheduled sweep failed.", "error", err)
		}
	})
	if err != nil {
		slog.Error("Invalid cleanup schedule.", "schedule", cfg.Retention.CleanupSchedule, "error", err)
		os.Exit(1)
	}
	c.Start()
	slog.Info("Janitor started.", "schedule", cfg.Retention.CleanupSchedule)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("Janitor stopping.")
	<-c.Stop().Done()
}
