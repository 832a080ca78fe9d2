// Package progress estimates per-job completion independently of any engine run.
package progress

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fieldrow/companyfix/internal/docstore"
	"github.com/fieldrow/companyfix/internal/migration"
)

// JobStatus classifies a sampled completion estimate.
type JobStatus string

const (
	StatusNotStarted JobStatus = "not_started"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// JobProgress is a derived completion estimate, recomputed on each poll and
// never persisted. It answers "how much of the data is fixed" regardless of
// which run fixed it.
type JobProgress struct {
	JobID           string    `json:"jobId"`
	TotalSampled    int       `json:"totalSampled"`
	AlreadyEnriched int       `json:"alreadyEnriched"`
	ProgressPercent float64   `json:"progressPercent"`
	Status          JobStatus `json:"status"`
	SampledAt       time.Time `json:"sampledAt"`
	Error           string    `json:"error,omitempty"`
}

// Aggregator samples collections to estimate how far each repair job has
// progressed. It is read-only against the store and deliberately decoupled
// from the engines' cursors and stats, trading precision for responsiveness.
type Aggregator struct {
	store       docstore.Interface
	jobs        map[string]migration.JobConfig
	sampleLimit int
	logger      *slog.Logger
	memo        *gocache.Cache
}

// NewAggregator creates an aggregator. Samples are memoized for ttl between
// polls so API reads never trigger a scan storm.
func NewAggregator(store docstore.Interface, jobs map[string]migration.JobConfig, sampleLimit int, ttl time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:       store,
		jobs:        jobs,
		sampleLimit: sampleLimit,
		logger:      logger,
		memo:        gocache.New(ttl, 2*ttl),
	}
}

// Sample performs a capped scan of the job's collection and partitions it
// into records that already carry the owner field and records that lack it.
// A read failure yields an error-status progress, never a panic.
func (a *Aggregator) Sample(ctx context.Context, jobID string) JobProgress {
	prog := JobProgress{JobID: jobID, SampledAt: time.Now()}

	job, ok := a.jobs[jobID]
	if !ok {
		prog.Status = StatusError
		prog.Error = "unknown job"
		return prog
	}

	const samplePageSize = 250
	afterKey := ""
	for prog.TotalSampled < a.sampleLimit {
		pageSize := samplePageSize
		if remaining := a.sampleLimit - prog.TotalSampled; remaining < pageSize {
			pageSize = remaining
		}
		page, err := a.store.Scan(ctx, job.Collection, nil, job.OrderBy, pageSize, afterKey)
		if err != nil {
			a.logger.Error("progress sample failed", "job", jobID, "error", err)
			prog.Status = StatusError
			prog.Error = err.Error()
			a.memo.Set(jobID, prog, gocache.DefaultExpiration)
			return prog
		}
		for i := range page.Records {
			prog.TotalSampled++
			if v, ok := page.Records[i].Fields[job.OwnerField]; ok && v != nil {
				prog.AlreadyEnriched++
			}
		}
		if len(page.Records) < pageSize {
			break
		}
		afterKey = page.LastKey
	}

	switch {
	case prog.TotalSampled == 0:
		prog.Status = StatusNotStarted
	default:
		prog.ProgressPercent = float64(prog.AlreadyEnriched) / float64(prog.TotalSampled) * 100
		switch {
		case prog.AlreadyEnriched == prog.TotalSampled:
			prog.Status = StatusCompleted
		case prog.AlreadyEnriched == 0:
			prog.Status = StatusNotStarted
		default:
			prog.Status = StatusInProgress
		}
	}

	a.memo.Set(jobID, prog, gocache.DefaultExpiration)
	return prog
}

// Progress returns the memoized estimate for jobID, sampling fresh when the
// memo has expired.
func (a *Aggregator) Progress(ctx context.Context, jobID string) JobProgress {
	if cached, ok := a.memo.Get(jobID); ok {
		return cached.(JobProgress)
	}
	return a.Sample(ctx, jobID)
}

// All returns progress for every configured job in dependency display order.
func (a *Aggregator) All(ctx context.Context) []JobProgress {
	ordered := migration.OrderedJobs(a.jobs)
	out := make([]JobProgress, 0, len(ordered))
	for _, job := range ordered {
		out = append(out, a.Progress(ctx, job.ID))
	}
	return out
}
