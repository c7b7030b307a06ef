package identity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// Domain separates product identities from any other name-based UUID
// derived in the same namespace. Bump the suffix if the canonical form changes.
const Domain = "importflow/product/v1"

// Namespace is the UUIDv5 namespace identities are derived in.
var Namespace = uuid.NameSpaceURL

// Derive returns the content-addressed identity of p. Equal products always
// yield the same identity, regardless of which process computes it.
func Derive(p catalog.Product) (uuid.UUID, error) {
	canonical, err := Canonical(p)
	if err != nil {
		return uuid.Nil, fmt.Errorf("derive identity: %w", err)
	}
	name := make([]byte, 0, len(Domain)+1+len(canonical))
	name = append(name, Domain...)
	name = append(name, 0x00)
	name = append(name, canonical...)
	return uuid.NewSHA1(Namespace, name), nil
}

// MustDerive is like Derive but panics on error. Only for tests and fixtures.
func MustDerive(p catalog.Product) uuid.UUID {
	id, err := Derive(p)
	if err != nil {
		panic(err)
	}
	return id
}

// Parse parses the textual form of an identity.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse identity %q: %w", s, err)
	}
	return id, nil
}

// Canonical returns the canonical serialization of p: fields in declaration
// order, no insignificant whitespace, no HTML escaping, NFC-normalized strings,
// and empty lists encoded as [] rather than null.
func Canonical(p catalog.Product) ([]byte, error) {
	c := normalize(p)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("canonical: failed to marshal: %w", err)
	}
	// Encode appends a newline.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func normalize(p catalog.Product) catalog.Product {
	out := catalog.Product{
		SKU:         norm.NFC.String(p.SKU),
		Title:       norm.NFC.String(p.Title),
		Brand:       norm.NFC.String(p.Brand),
		Category:    norm.NFC.String(p.Category),
		Description: norm.NFC.String(p.Description),
		Attributes:  make([]catalog.Attribute, 0, len(p.Attributes)),
		Images:      make([]catalog.Image, 0, len(p.Images)),
	}
	for _, a := range p.Attributes {
		v := a.Value
		if !v.IsBool() {
			v = catalog.StringValue(norm.NFC.String(v.String()))
		}
		out.Attributes = append(out.Attributes, catalog.Attribute{Code: norm.NFC.String(a.Code), Value: v})
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, catalog.Image{URL: norm.NFC.String(img.URL)})
	}
	return out
}
