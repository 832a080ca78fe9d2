// Package serve implements the operator API subcommand.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldrow/companyfix/internal/api"
	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/docstore"
	"github.com/fieldrow/companyfix/internal/logging"
	"github.com/fieldrow/companyfix/internal/migration"
	"github.com/fieldrow/companyfix/internal/observability"
	"github.com/fieldrow/companyfix/internal/progress"
)

// Command creates the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator API and the progress poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}
}

func runServer(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	if settings.Main.Log.Enabled {
		level := slog.LevelInfo
		if settings.Debug {
			level = slog.LevelDebug
		}
		fileLogger, closeLog, err := logging.NewFileLogger(
			settings.Main.Log.Path, "serve", level,
			logging.FileConfig{
				MaxSizeMB:  settings.Main.Log.MaxSizeMB,
				MaxBackups: settings.Main.Log.MaxBackups,
				MaxAgeDays: settings.Main.Log.MaxAgeDays,
			})
		if err != nil {
			logger.Warn("file logging unavailable, using console", "error", err)
		} else {
			defer closeLog()
			logger = fileLogger
		}
	}

	store := docstore.New(settings)
	if store == nil {
		return fmt.Errorf("no document store backend enabled")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}
	defer store.Close()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	jobs := migration.JobsFromSettings(settings)
	engines := make(map[string]*migration.Engine, len(jobs))
	for id, job := range jobs {
		engines[id] = migration.NewEngine(settings, job, store, logger.With("job", id), metrics.Migration)
	}

	aggregator := progress.NewAggregator(store, jobs,
		settings.Progress.SampleLimit, settings.Progress.PollInterval, logger)
	poller := progress.NewPoller(aggregator, settings.Progress.PollInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go poller.Run(ctx)

	controller := api.New(engines, aggregator, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Start(settings.HTTP.Host, settings.HTTP.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Pause all engines so in-flight full runs stop between pages.
	for _, engine := range engines {
		engine.Pause()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := controller.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down operator API: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
