package main

import "github.com/imrishuroy/go-product-importflow/internal/lifecycle"

// SweepSummary is returned from each scheduled invocation.
type SweepSummary struct {
	EventID  string           `json:"event_id,omitempty"`
	Restored int              `json:"restored"`
	Checked  int              `json:"checked"`
	Finished int              `json:"finished"`
	Aborted  int              `json:"aborted"`
	Pending  int              `json:"pending"`
	Failed   int              `json:"failed"`
	Saved    int              `json:"saved"`
	Counts   lifecycle.Counts `json:"counts"`
}
