package progress

import (
	"context"
	"log/slog"
	"time"
)

// Poller refreshes progress estimates on its own timer, independent of the
// engine loop. It only reads from the store.
type Poller struct {
	aggregator *Aggregator
	interval   time.Duration
	logger     *slog.Logger
}

// NewPoller creates a poller over the given aggregator.
func NewPoller(aggregator *Aggregator, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		aggregator: aggregator,
		interval:   interval,
		logger:     logger,
	}
}

// Run samples all jobs on each tick until the context is cancelled. The
// first sample round runs immediately.
func (p *Poller) Run(ctx context.Context) {
	p.sampleAll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("progress poller stopped")
			return
		case <-ticker.C:
			p.sampleAll(ctx)
		}
	}
}

func (p *Poller) sampleAll(ctx context.Context) {
	for jobID := range p.aggregator.jobs {
		if ctx.Err() != nil {
			return
		}
		prog := p.aggregator.Sample(ctx, jobID)
		p.logger.Debug("progress sampled",
			"job", jobID,
			"status", prog.Status,
			"percent", prog.ProgressPercent,
			"sampled", prog.TotalSampled)
	}
}
