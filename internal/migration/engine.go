package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/docstore"
	"github.com/fieldrow/companyfix/internal/errors"
	"github.com/fieldrow/companyfix/internal/observability/metrics"
)

// EngineState is the run state of one job's engine.
type EngineState string

const (
	StateIdle      EngineState = "idle"
	StateRunning   EngineState = "running"
	StateCompleted EngineState = "completed"
	StateErrored   EngineState = "error"
)

// StatsObserver receives a snapshot after every processed page.
type StatsObserver func(StatsSnapshot)

// Engine owns the cursor, stats, cache and audit log of one repair job and
// exposes the page-at-a-time processing loop. Pages are processed under one
// mutex, so the loop itself stays effectively single-threaded; the cache,
// stats and audit log carry their own locks because the operator API reads
// them while a page is in flight.
type Engine struct {
	mu sync.Mutex

	job       JobConfig
	store     docstore.Interface
	fetcher   *PageFetcher
	resolver  *OwnerResolver
	committer *Committer
	cache     *ReadThroughCache
	stats     *Stats
	audit     *AuditLog
	logger    *slog.Logger
	metrics   *metrics.MigrationMetrics

	cursor   Cursor
	state    EngineState
	paused   bool
	throttle time.Duration
	minLen   int

	observerMu sync.Mutex
	observers  []StatsObserver
}

// NewEngine builds an engine for one job from settings.
func NewEngine(settings *conf.Settings, job JobConfig, store docstore.Interface, logger *slog.Logger, m *metrics.MigrationMetrics) *Engine {
	cache := NewReadThroughCache(settings.Migration.Cache.Capacity, settings.Migration.Cache.TTL)
	stats := NewStats()
	audit := NewAuditLog(settings.Migration.AuditLogSize)
	minLen := settings.Migration.MinOwnerIDLength

	return &Engine{
		job:       job,
		store:     store,
		fetcher:   NewPageFetcher(store, job.Collection, nil, job.OrderBy),
		resolver:  NewOwnerResolver(store, cache, stats, audit, logger, job.ReferenceCollection, job.ReferenceOwnerField, minLen),
		committer: NewCommitter(store, job.Collection, logger, settings.Migration.DryRun),
		cache:     cache,
		stats:     stats,
		audit:     audit,
		logger:    logger,
		metrics:   m,
		cursor:    NewCursor(settings.Migration.PageSize),
		state:     StateIdle,
		throttle:  settings.Migration.Throttle,
		minLen:    minLen,
	}
}

// Job returns the engine's job configuration.
func (e *Engine) Job() JobConfig { return e.job }

// State returns the current run state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cursor returns a copy of the scan position.
func (e *Engine) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot(string(e.State()))
}

// CacheStats returns a snapshot of the reference cache counters.
func (e *Engine) CacheStats() CacheStats { return e.cache.Stats() }

// ClearCache empties the reference cache.
func (e *Engine) ClearCache() { e.cache.Clear() }

// CleanupCache sweeps TTL-expired cache entries, returning how many were removed.
func (e *Engine) CleanupCache() int { return e.cache.Cleanup() }

// RecentLogs returns up to n audit entries, newest first.
func (e *Engine) RecentLogs(n int) []LogEntry { return e.audit.Recent(n) }

// CollectionCount returns the total number of records in the job's target
// collection. Display only, the loop never depends on it.
func (e *Engine) CollectionCount(ctx context.Context) (int64, error) {
	return e.store.Count(ctx, e.job.Collection, nil)
}

// OnStatsUpdate registers an observer notified with a snapshot after each
// processed page. Observers decouple the engine from any rendering layer.
func (e *Engine) OnStatsUpdate(obs StatsObserver) {
	e.observerMu.Lock()
	defer e.observerMu.Unlock()
	e.observers = append(e.observers, obs)
}

func (e *Engine) notify(snap StatsSnapshot) {
	e.observerMu.Lock()
	observers := append([]StatsObserver(nil), e.observers...)
	e.observerMu.Unlock()
	for _, obs := range observers {
		obs(snap)
	}
}

// Pause requests the ProcessAll loop to stop after the page in flight.
// It never interrupts a page mid-way.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume clears a pending pause request.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Reset returns the engine to idle with all mutable state zeroed: cursor at
// the start, counters at zero, audit log and cache emptied, staged mutations
// dropped.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor = NewCursor(e.cursor.PageSize)
	e.state = StateIdle
	e.paused = false
	e.committer.Discard()
	e.stats.Reset()
	e.audit.Reset()
	e.cache.Clear()
	e.logger.Info("engine reset", "job", e.job.ID)
}

// ProcessNextPage fetches one page of the target collection, resolves and
// stages missing owners, commits the page atomically and returns a stats
// snapshot. The cursor advances only after a confirmed commit: on commit
// failure it still points at the failed page so a subsequent call retries it.
func (e *Engine) ProcessNextPage(ctx context.Context) (StatsSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateCompleted {
		return e.stats.Snapshot(string(e.state)), nil
	}

	e.state = StateRunning
	e.stats.MarkRunStarted()

	records, nextCursor, isLast, err := e.fetcher.NextPage(ctx, e.cursor)
	if err != nil {
		e.state = StateErrored
		e.stats.MarkRunStopped()
		return e.stats.Snapshot(string(e.state)), err
	}

	if len(records) == 0 {
		// No more data at this position, regardless of the last-page flag.
		e.cursor = nextCursor
		e.cursor.Exhausted = true
		e.state = StateCompleted
		e.stats.MarkRunStopped()
		e.metrics.RecordPage(e.job.ID, "empty")
		e.logger.Info("scan exhausted", "job", e.job.ID, "batches", e.stats.CurrentBatch())
		snap := e.stats.Snapshot(string(e.state))
		e.mu.Unlock()
		e.notify(snap)
		e.mu.Lock()
		return snap, nil
	}

	e.stats.IncBatch()
	e.stats.AddTotal(len(records))
	batch := e.stats.CurrentBatch()

	for i := range records {
		e.processRecord(ctx, &records[i], batch)
	}

	commitStart := time.Now()
	committed, err := e.committer.Commit(ctx)
	if err != nil {
		// The cursor is left on the failed page; the next call retries it.
		e.state = StateErrored
		e.stats.MarkRunStopped()
		e.metrics.RecordPage(e.job.ID, "failed")
		e.audit.Append("", StatusError,
			fmt.Sprintf("batch %d commit failed: %v", batch, err),
			map[string]any{"batch": batch})
		snap := e.stats.Snapshot(string(e.state))
		return snap, errors.New(err).
			Component("migration").
			Category(errors.CategoryCommit).
			Context("job", e.job.ID).
			Context("batch", batch).
			Priority(errors.PriorityHigh).
			Build()
	}
	e.metrics.ObserveCommit(e.job.ID, time.Since(commitStart))
	if committed > 0 {
		e.metrics.RecordPage(e.job.ID, "committed")
	} else {
		e.metrics.RecordPage(e.job.ID, "empty")
	}

	e.stats.AddUpdated(committed)
	e.cursor = nextCursor

	if isLast {
		e.state = StateCompleted
		e.stats.MarkRunStopped()
		e.logger.Info("migration completed", "job", e.job.ID, "batches", batch)
	} else {
		e.state = StateIdle
	}

	snap := e.stats.Snapshot(string(e.state))
	e.mu.Unlock()
	e.notify(snap)
	e.mu.Lock()
	return snap, nil
}

// processRecord handles one record: skip when the owner is already valid,
// otherwise resolve and stage. Per-record problems never abort the page.
func (e *Engine) processRecord(ctx context.Context, record *docstore.Document, batch uint64) {
	e.stats.IncProcessed()

	existing := ValidateOwnerField(record.Fields, e.job.OwnerField, e.minLen)
	if existing.IsValid {
		// A record is mutated at most once per run: an already-valid owner
		// means skip, never re-write.
		e.stats.IncSkipped()
		e.metrics.RecordOutcome(e.job.ID, "skipped")
		e.audit.Append(record.ID, StatusSkipped,
			"owner already set: "+existing.Value, nil)
		return
	}

	candidates, ok := candidateList(record.Fields[e.job.CandidatesField])
	if !ok {
		e.stats.IncDataIntegrityIssues()
		e.stats.IncSkipped()
		e.metrics.RecordOutcome(e.job.ID, "skipped")
		e.audit.Append(record.ID, StatusSkipped,
			fmt.Sprintf("no %s list on record", e.job.CandidatesField),
			map[string]any{"batch": batch})
		return
	}

	res, found := e.resolver.Resolve(ctx, record.ID, candidates)
	e.metrics.AddCandidatesChecked(e.job.ID, res.CandidatesChecked)
	if !found {
		e.stats.IncErrors()
		e.metrics.RecordOutcome(e.job.ID, "error")
		e.metrics.RecordResolution(e.job.ID, "not_found")
		return
	}
	e.metrics.RecordResolution(e.job.ID, "found")
	e.metrics.RecordOutcome(e.job.ID, "updated")
	e.committer.Stage(record.ID, e.job.OwnerField, res, batch)
}

// candidateList coerces the decoded candidates field into a slice. JSON
// arrays decode as []any; a missing or differently-shaped value is a data
// integrity issue handled by the caller.
func candidateList(raw any) ([]any, bool) {
	if raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	default:
		return nil, false
	}
}

// ProcessAll loops ProcessNextPage until the scan is exhausted, an error
// surfaces, or a pause is requested. A fixed throttle separates pages to
// avoid overwhelming the store; it is the only scheduling point.
func (e *Engine) ProcessAll(ctx context.Context) error {
	e.stats.MarkRunStarted()
	defer e.stats.MarkRunStopped()

	for {
		if e.isPaused() {
			e.logger.Info("run paused", "job", e.job.ID)
			e.mu.Lock()
			e.state = StateIdle
			e.mu.Unlock()
			return nil
		}

		snap, err := e.ProcessNextPage(ctx)
		if err != nil {
			return err
		}
		if snap.State == string(StateCompleted) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.throttle):
		}
	}
}
