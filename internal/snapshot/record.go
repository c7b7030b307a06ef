// Package snapshot persists the lifecycle store between process runs.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// Record is the persisted form of one tracked identity. ID and Status are
// kept as text so a single bad record can be skipped on load instead of
// failing the whole snapshot.
type Record struct {
	ID      string                `json:"id"`
	Code    string                `json:"code"`
	Status  string                `json:"status"`
	Product catalog.Product       `json:"product"`
	Result  *catalog.UploadResult `json:"result"`

	// Invalid is set by backends that store one item per record when an item
	// could be read but not decoded. The reconciler skips such records.
	Invalid error `json:"-"`
}

// Backend stores and retrieves a full snapshot.
type Backend interface {
	// Load returns every saved record. A snapshot that was never written is empty, not an error.
	Load(ctx context.Context) ([]Record, error)
	// Save replaces the stored snapshot with records.
	Save(ctx context.Context, records []Record) error
}

func encodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecords(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, nil
}
