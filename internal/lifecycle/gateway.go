package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// Gateway is the marketplace import API as seen by the coordinator.
type Gateway interface {
	// Submit sends p for import and returns the tracking code.
	Submit(ctx context.Context, p catalog.Product) (string, error)
	// PollStatus returns the current state of the import behind code.
	PollStatus(ctx context.Context, code string) (catalog.Status, error)
	// FetchResult returns the detailed outcome of a terminal import.
	FetchResult(ctx context.Context, code string) (catalog.UploadResult, error)
}

// Transition describes an identity leaving the UPLOADED state.
type Transition struct {
	ID     uuid.UUID      `json:"id"`
	Code   string         `json:"code"`
	Status catalog.Status `json:"status"`
	SKU    string         `json:"sku,omitempty"`
}

// TransitionNotifier is told about every archived identity.
type TransitionNotifier interface {
	NotifyTransition(ctx context.Context, t Transition) error
}
