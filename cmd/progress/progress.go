// Package progress implements the one-shot progress sampling subcommand.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/docstore"
	"github.com/fieldrow/companyfix/internal/logging"
	"github.com/fieldrow/companyfix/internal/migration"
	progressagg "github.com/fieldrow/companyfix/internal/progress"
)

// Command creates the progress subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Sample collections and report backfill completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(settings, jobID)
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Sample a single job instead of all")

	return cmd
}

func runProgress(settings *conf.Settings, jobID string) error {
	logger := logging.ForService("progress")

	store := docstore.New(settings)
	if store == nil {
		return fmt.Errorf("no document store backend enabled")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening document store: %w", err)
	}
	defer store.Close()

	jobs := migration.JobsFromSettings(settings)
	aggregator := progressagg.NewAggregator(store, jobs,
		settings.Progress.SampleLimit, settings.Progress.PollInterval, logger)

	ctx := context.Background()
	var out any
	if jobID != "" {
		if _, ok := jobs[jobID]; !ok {
			return fmt.Errorf("unknown job %q", jobID)
		}
		out = aggregator.Sample(ctx, jobID)
	} else {
		out = aggregator.All(ctx)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
