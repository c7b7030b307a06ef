package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
	"github.com/imrishuroy/go-product-importflow/internal/snapshot"
)

// Processor runs one scheduled sweep: restore state, poll every UPLOADED
// import, persist the result.
type Processor struct {
	store      *lifecycle.Store
	reconciler *snapshot.Reconciler
	poller     *lifecycle.Poller
	logger     *slog.Logger

	mu       sync.Mutex
	loaded   bool
	restored int
}

// NewProcessor creates a worker processor around already wired components.
func NewProcessor(store *lifecycle.Store, reconciler *snapshot.Reconciler, poller *lifecycle.Poller, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, reconciler: reconciler, poller: poller, logger: logger}
}

// Handle receives a scheduled event. The snapshot is loaded by the first
// invocation that manages to read it; warm containers keep the store between
// invocations.
func (p *Processor) Handle(ctx context.Context, ev events.CloudWatchEvent) (SweepSummary, error) {
	restored, err := p.ensureLoaded(ctx)
	if err != nil {
		return SweepSummary{}, err
	}

	p.logger.Info("sweep started", "event_id", ev.ID, "source", ev.Source)
	report := p.poller.Tick(ctx)

	saved, err := p.reconciler.Save(ctx)
	if err != nil {
		// Return error: the scheduler will invoke again and the sweep is safe to repeat.
		return SweepSummary{}, fmt.Errorf("save snapshot: %w", err)
	}

	summary := SweepSummary{
		EventID:  ev.ID,
		Restored: restored,
		Checked:  report.Checked,
		Finished: report.Finished,
		Aborted:  report.Aborted,
		Pending:  report.Pending,
		Failed:   report.Failed,
		Saved:    saved,
		Counts:   p.store.Counts(),
	}
	p.logger.Info("sweep completed",
		"checked", summary.Checked, "finished", summary.Finished, "aborted", summary.Aborted,
		"pending", summary.Pending, "failed", summary.Failed, "saved", summary.Saved)
	return summary, nil
}

// ensureLoaded restores the snapshot unless an earlier invocation already
// did. A failed load is retried on the next invocation.
func (p *Processor) ensureLoaded(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return p.restored, nil
	}
	rep, err := p.reconciler.Load(ctx)
	if err != nil {
		return 0, err
	}
	p.loaded, p.restored = true, rep.Restored
	return p.restored, nil
}
