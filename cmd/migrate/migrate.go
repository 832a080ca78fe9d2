// Package migrate implements the batch repair subcommand.
package migrate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/docstore"
	"github.com/fieldrow/companyfix/internal/logging"
	"github.com/fieldrow/companyfix/internal/migration"
	"github.com/fieldrow/companyfix/internal/observability"
)

// Command creates the migrate subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var jobID string
	var runAll bool
	var pages int
	var reset bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run a backfill job against the document store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID == "" {
				return fmt.Errorf("--job is required, configured jobs: %v", jobIDs(settings))
			}
			return runMigration(settings, jobID, runAll, pages, reset)
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Job id to run")
	cmd.Flags().BoolVar(&runAll, "all", false, "Process pages until the scan is exhausted")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to process when --all is not set")
	cmd.Flags().BoolVar(&reset, "reset", false, "Reset engine state before running")

	return cmd
}

func jobIDs(settings *conf.Settings) []string {
	ids := make([]string, 0, len(settings.Jobs))
	for id := range settings.Jobs {
		ids = append(ids, id)
	}
	return ids
}

func runMigration(settings *conf.Settings, jobID string, runAll bool, pages int, reset bool) error {
	logger := logging.ForService("migrate")

	jobs := migration.JobsFromSettings(settings)
	job, ok := jobs[jobID]
	if !ok {
		return fmt.Errorf("unknown job %q, configured jobs: %v", jobID, jobIDs(settings))
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

	engine := migration.NewEngine(settings, job, store, logger, metrics.Migration)
	if reset {
		engine.Reset()
	}

	if total, err := engine.CollectionCount(context.Background()); err == nil {
		logger.Info("starting run", "job", jobID, "collection", job.Collection, "totalRecords", total)
	}

	engine.OnStatsUpdate(func(snap migration.StatsSnapshot) {
		logger.Info("page processed",
			"job", jobID,
			"batch", snap.CurrentBatch,
			"processed", snap.ProcessedItems,
			"updated", snap.UpdatedItems,
			"skipped", snap.SkippedItems,
			"errors", snap.ErrorItems,
			"rate", fmt.Sprintf("%.1f/s", snap.ProcessingRate),
			"state", snap.State)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGINT pauses between pages rather than aborting mid-page.
	go func() {
		<-ctx.Done()
		engine.Pause()
	}()

	if runAll {
		if err := engine.ProcessAll(ctx); err != nil {
			return err
		}
	} else {
		for i := 0; i < pages; i++ {
			snap, err := engine.ProcessNextPage(ctx)
			if err != nil {
				return err
			}
			if snap.State == string(migration.StateCompleted) {
				break
			}
		}
	}

	final := engine.Stats()
	cacheStats := engine.CacheStats()
	logger.Info("run finished",
		"job", jobID,
		"state", final.State,
		"processed", final.ProcessedItems,
		"updated", final.UpdatedItems,
		"skipped", final.SkippedItems,
		"errors", final.ErrorItems,
		"noValidCandidate", final.NoValidCandidateFound,
		"cacheEfficiency", fmt.Sprintf("%.1f%%", cacheStats.Efficiency))
	return nil
}
