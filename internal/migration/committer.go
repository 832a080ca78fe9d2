package migration

import (
	"context"
	"log/slog"
	"time"

	"github.com/fieldrow/companyfix/internal/docstore"
)

// Committer stages per-record mutations for one page and issues a single
// atomic multi-record write. A page with zero staged mutations never reaches
// the store.
type Committer struct {
	store      docstore.Interface
	collection string
	logger     *slog.Logger
	dryRun     bool

	staged []docstore.Write
}

// NewCommitter creates a committer for one target collection.
func NewCommitter(store docstore.Interface, collection string, logger *slog.Logger, dryRun bool) *Committer {
	return &Committer{
		store:      store,
		collection: collection,
		logger:     logger,
		dryRun:     dryRun,
	}
}

// Stage queues a mutation for recordID. Provenance fields are stamped here so
// every write carries how its owner was resolved.
func (c *Committer) Stage(recordID string, ownerField string, res Resolution, batch uint64) {
	mutation := map[string]any{
		ownerField:          res.OwnerID,
		"companyIdSource":   "migration",
		"resolverIndex":     res.ResolverIndex,
		"candidatesChecked": res.CandidatesChecked,
		"migrationBatch":    batch,
		"migratedAt":        time.Now().UTC().Format(time.RFC3339),
	}
	c.staged = append(c.staged, docstore.Write{ID: recordID, Mutation: mutation})
}

// StagedCount returns the number of queued mutations.
func (c *Committer) StagedCount() int {
	return len(c.staged)
}

// Commit writes all staged mutations atomically and clears the staging area.
// With nothing staged it is a no-op; the store never sees an empty batch. In
// dry-run mode the staging area is counted and discarded without a write.
func (c *Committer) Commit(ctx context.Context) (int, error) {
	if len(c.staged) == 0 {
		c.logger.Info("no updates to commit", "collection", c.collection)
		return 0, nil
	}

	count := len(c.staged)
	if c.dryRun {
		c.logger.Info("dry run, discarding staged updates",
			"collection", c.collection, "staged", count)
		c.staged = c.staged[:0]
		return count, nil
	}

	if err := c.store.AtomicBatchWrite(ctx, c.collection, c.staged); err != nil {
		// The whole page is considered not applied. The engine re-fetches
		// and re-stages the page on retry. The store may retain the slice,
		// so release the backing array instead of truncating it.
		c.staged = nil
		return 0, err
	}

	c.logger.Info("page committed", "collection", c.collection, "records", count)
	c.staged = nil
	return count, nil
}

// Discard drops staged mutations without writing, used on reset.
func (c *Committer) Discard() {
	c.staged = c.staged[:0]
}
