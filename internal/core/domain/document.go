// internal/core/domain/document.go
package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultLowStockThreshold is used when the document has no threshold
const DefaultLowStockThreshold = 50

// Settings holds inventory-wide settings
type Settings struct {
	LowStockThreshold int `json:"low_stock_threshold"`
}

// Document is the single persisted aggregate of settings, admins and products.
// Version is maintained by repositories that support optimistic checks and is
// never serialized into the document body.
type Document struct {
	Settings Settings  `json:"settings"`
	Admins   []int64   `json:"admins"`
	Products []Product `json:"products"`
	Version  int64     `json:"-"`
}

// NewDocument returns a document with every section defaulted
func NewDocument() *Document {
	return &Document{
		Settings: Settings{LowStockThreshold: DefaultLowStockThreshold},
		Admins:   []int64{},
		Products: []Product{},
	}
}

type rawSettings struct {
	LowStockThreshold *int `json:"low_stock_threshold"`
}

type rawDocument struct {
	Settings *rawSettings `json:"settings"`
	Admins   *[]int64     `json:"admins"`
	Products *[]Product   `json:"products"`
}

// DecodeDocument parses a persisted document, defaulting any missing section.
// filled reports whether at least one default was applied, in which case the
// caller should persist the completed document.
func DecodeDocument(data []byte) (doc *Document, filled bool, err error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("failed to decode document: %w", err)
	}

	doc = NewDocument()

	if raw.Settings == nil || raw.Settings.LowStockThreshold == nil {
		filled = true
	} else {
		doc.Settings.LowStockThreshold = *raw.Settings.LowStockThreshold
	}

	if raw.Admins == nil {
		filled = true
	} else if *raw.Admins != nil {
		doc.Admins = *raw.Admins
	}

	if raw.Products == nil {
		filled = true
	} else if *raw.Products != nil {
		doc.Products = *raw.Products
	}

	return doc, filled, nil
}

// Encode renders the document in its persisted form
func (d *Document) Encode() ([]byte, error) {
	out := *d
	if out.Admins == nil {
		out.Admins = []int64{}
	}
	if out.Products == nil {
		out.Products = []Product{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (d *Document) Clone() *Document {
	c := &Document{
		Settings: d.Settings,
		Admins:   make([]int64, len(d.Admins)),
		Products: make([]Product, len(d.Products)),
		Version:  d.Version,
	}
	copy(c.Admins, d.Admins)
	copy(c.Products, d.Products)
	return c
}

// FindProduct returns the index of the product with the given id, or -1
func (d *Document) FindProduct(id string) int {
	for i := range d.Products {
		if d.Products[i].ProductID == id {
			return i
		}
	}
	return -1
}

// HasAdmin reports whether id is in the admin registry
func (d *Document) HasAdmin(id int64) bool {
	for _, a := range d.Admins {
		if a == id {
			return true
		}
	}
	return false
}

// LowStock returns the products at or below the current threshold
func (d *Document) LowStock() []Product {
	var out []Product
	for _, p := range d.Products {
		if p.IsLowStock(d.Settings.LowStockThreshold) {
			out = append(out, p)
		}
	}
	return out
}
