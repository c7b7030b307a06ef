package catalog

import (
	"fmt"
	"slices"
)

// Lifecycle statuses reported by the marketplace import API.
const (
	StatusUploaded Status = "UPLOADED"
	StatusFinished Status = "FINISHED"
	StatusAborted  Status = "ABORTED"
)

// Status is the lifecycle state of a tracked submission.
type Status string

// ParseStatus converts the marketplace's textual status into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusUploaded, StatusFinished, StatusAborted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Terminal reports whether no further transition is possible from st.
func (st Status) Terminal() bool {
	return st == StatusFinished || st == StatusAborted
}

func (st Status) String() string { return string(st) }

// Product is a single item submitted to the marketplace import API.
type Product struct {
	SKU         string      `json:"sku" validate:"required"`
	Title       string      `json:"title" validate:"required"`
	Brand       string      `json:"brand"`
	Category    string      `json:"category" validate:"required"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes" validate:"dive"`
	Images      []Image     `json:"images" validate:"dive"`
}

// Attribute is a category-specific property of a product.
type Attribute struct {
	Code  string         `json:"code" validate:"required"`
	Value AttributeValue `json:"value"`
}

// Image references a product picture by URL.
type Image struct {
	URL string `json:"url" validate:"required,url"`
}

// UploadResult is the detailed outcome of a finished or aborted import.
type UploadResult struct {
	Errors   int      `json:"errors"`
	Warnings int      `json:"warnings"`
	Skipped  int      `json:"skipped"`
	Total    int      `json:"total"`
	Result   []string `json:"result"`
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	out := p
	out.Attributes = slices.Clone(p.Attributes)
	out.Images = slices.Clone(p.Images)
	return out
}

// Equal reports structural equality.
func (p Product) Equal(o Product) bool {
	return p.SKU == o.SKU &&
		p.Title == o.Title &&
		p.Brand == o.Brand &&
		p.Category == o.Category &&
		p.Description == o.Description &&
		slices.Equal(p.Attributes, o.Attributes) &&
		slices.Equal(p.Images, o.Images)
}

// Clone returns a deep copy of r.
func (r UploadResult) Clone() UploadResult {
	out := r
	out.Result = slices.Clone(r.Result)
	return out
}

// Equal reports structural equality.
func (r UploadResult) Equal(o UploadResult) bool {
	return r.Errors == o.Errors &&
		r.Warnings == o.Warnings &&
		r.Skipped == o.Skipped &&
		r.Total == o.Total &&
		slices.Equal(r.Result, o.Result)
}
