package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// DefaultSweepConcurrency caps parallel marketplace polls during a sweep.
const DefaultSweepConcurrency = 8

// SweepItem is the outcome of checking one identity during a sweep.
type SweepItem struct {
	ID     uuid.UUID      `json:"id"`
	Code   string         `json:"code"`
	Status catalog.Status `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// SweepReport summarizes a sweep over all UPLOADED identities.
type SweepReport struct {
	Checked   int         `json:"checked"`
	Finished  int         `json:"finished"`
	Aborted   int         `json:"aborted"`
	Pending   int         `json:"pending"`
	Conflicts int         `json:"conflicts"`
	Failed    int         `json:"failed"`
	Items     []SweepItem `json:"items"`
}

// Sweep checks every identity currently in the UPLOADED state, at most limit
// at a time. Individual failures are reported, never returned; the error is
// non-nil only when ctx ends before the sweep completes.
func (c *Coordinator) Sweep(ctx context.Context, limit int) (SweepReport, error) {
	if limit <= 0 {
		limit = DefaultSweepConcurrency
	}
	ids := c.store.UploadedIDs()

	var (
		mu     sync.Mutex
		report = SweepReport{Items: make([]SweepItem, 0, len(ids))}
	)
	g := new(errgroup.Group)
	g.SetLimit(limit)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := c.Check(ctx, id)
			item := SweepItem{ID: id, Code: v.Code, Status: v.Status}

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			switch {
			case errors.Is(err, ErrArchiveConflict):
				report.Conflicts++
			case err != nil && !v.Status.Terminal():
				report.Failed++
				item.Error = err.Error()
			case err != nil:
				// Archived, but the result fetch failed. Next check retries it.
				item.Error = err.Error()
			}
			switch v.Status {
			case catalog.StatusFinished:
				report.Finished++
			case catalog.StatusAborted:
				report.Aborted++
			case catalog.StatusUploaded:
				if err == nil {
					report.Pending++
				}
			}
			report.Items = append(report.Items, item)
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("sweep complete",
		"checked", report.Checked,
		"finished", report.Finished,
		"aborted", report.Aborted,
		"pending", report.Pending,
		"failed", report.Failed)
	return report, ctx.Err()
}
