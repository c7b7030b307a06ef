package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
	"github.com/imrishuroy/go-product-importflow/internal/identity"
	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
)

// LoadReport summarizes a snapshot load.
type LoadReport struct {
	Restored int
	Skipped  int
}

// Reconciler moves state between the lifecycle store and a snapshot backend.
type Reconciler struct {
	store   *lifecycle.Store
	backend Backend
	logger  *slog.Logger
}

// NewReconciler returns a Reconciler for store.
func NewReconciler(store *lifecycle.Store, backend Backend, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, backend: backend, logger: logger}
}

// Load restores every valid record into the store. Invalid records are
// logged and skipped. Run it once before serving traffic.
func (r *Reconciler) Load(ctx context.Context) (LoadReport, error) {
	records, err := r.backend.Load(ctx)
	if err != nil {
		return LoadReport{}, fmt.Errorf("load snapshot: %w", err)
	}

	var rep LoadReport
	for i, rec := range records {
		entry, err := toEntry(rec)
		if err == nil {
			err = r.store.Restore(entry)
		}
		if err != nil {
			rep.Skipped++
			r.logger.Warn("skipping snapshot record", "index", i, "id", rec.ID, "status", rec.Status, "error", err)
			continue
		}
		rep.Restored++
	}
	r.logger.Info("snapshot loaded", "restored", rep.Restored, "skipped", rep.Skipped)
	return rep, nil
}

// Save writes every identity that has a lifecycle state. Products that never
// got a submission code are left out.
func (r *Reconciler) Save(ctx context.Context) (int, error) {
	entries := r.store.Entries()
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if e.Status == "" {
			continue
		}
		records = append(records, Record{
			ID:      e.ID.String(),
			Code:    e.Code,
			Status:  e.Status.String(),
			Product: e.Product,
			Result:  e.Result,
		})
	}
	if err := r.backend.Save(ctx, records); err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	r.logger.Debug("snapshot saved", "records", len(records))
	return len(records), nil
}

// Run saves every interval until ctx is cancelled, then saves once more
// using a fresh context bounded by interval.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), interval)
			defer cancel()
			if _, err := r.Save(final); err != nil {
				r.logger.Error("final snapshot save failed", "error", err)
			}
			return
		case <-ticker.C:
			if _, err := r.Save(ctx); err != nil {
				r.logger.Error("periodic snapshot save failed", "error", err)
			}
		}
	}
}

func toEntry(rec Record) (lifecycle.Entry, error) {
	if rec.Invalid != nil {
		return lifecycle.Entry{}, rec.Invalid
	}
	id, err := identity.Parse(rec.ID)
	if err != nil {
		return lifecycle.Entry{}, err
	}
	st, err := catalog.ParseStatus(rec.Status)
	if err != nil {
		return lifecycle.Entry{}, err
	}
	if rec.Code == "" {
		return lifecycle.Entry{}, fmt.Errorf("record %s has no code", rec.ID)
	}
	return lifecycle.Entry{
		ID:      id,
		Product: rec.Product,
		Code:    rec.Code,
		Status:  st,
		Result:  rec.Result,
	}, nil
}
