package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// CountsReporter receives partition sizes after every sweep.
type CountsReporter interface {
	ReportCounts(ctx context.Context, counts Counts) error
}

// Poller sweeps UPLOADED identities on a fixed interval.
type Poller struct {
	coord    *Coordinator
	interval time.Duration
	limit    int
	reporter CountsReporter
	logger   *slog.Logger
}

// NewPoller builds a Poller. reporter may be nil.
func NewPoller(coord *Coordinator, interval time.Duration, limit int, reporter CountsReporter, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{coord: coord, interval: interval, limit: limit, reporter: reporter, logger: logger}
}

// Start runs the polling loop in a goroutine until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one sweep and reports the resulting counts.
func (p *Poller) Tick(ctx context.Context) SweepReport {
	report, err := p.coord.Sweep(ctx, p.limit)
	if err != nil {
		p.logger.Warn("sweep interrupted", "error", err)
	}
	if p.reporter != nil {
		if err := p.reporter.ReportCounts(ctx, p.coord.Store().Counts()); err != nil {
			p.logger.Warn("report counts failed", "error", err)
		}
	}
	return report
}
