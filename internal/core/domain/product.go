// internal/core/domain/product.go
package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ProductField names a product attribute that can be changed after creation
type ProductField string

// Editable field constants, named as they appear in the persisted document
const (
	FieldCompanyName ProductField = "companyName"
	FieldImageURL    ProductField = "imageUrl"
	FieldPrice       ProductField = "price"
	FieldCategory    ProductField = "category"
)

var editableFields = []ProductField{FieldCompanyName, FieldImageURL, FieldPrice, FieldCategory}

// EditableFields returns the fields the edit flow offers, in menu order
func EditableFields() []ProductField {
	out := make([]ProductField, len(editableFields))
	copy(out, editableFields)
	return out
}

// ParseProductField maps a field name to an editable field
func ParseProductField(s string) (ProductField, bool) {
	for _, f := range editableFields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Label returns a human readable name for the field
func (f ProductField) Label() string {
	switch f {
	case FieldCompanyName:
		return "Company name"
	case FieldImageURL:
		return "Image URL"
	case FieldPrice:
		return "Price"
	case FieldCategory:
		return "Category"
	default:
		return string(f)
	}
}

// Product is a single stock line in the inventory document
type Product struct {
	CompanyName string  `json:"companyName"`
	ProductID   string  `json:"productId"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"imageUrl"`
}

// Validate checks the invariants every stored product must satisfy
func (p *Product) Validate() error {
	if strings.TrimSpace(p.ProductID) == "" {
		return NewValidationError("productId", "is required")
	}
	if strings.TrimSpace(p.CompanyName) == "" {
		return NewValidationError("companyName", "is required")
	}
	if p.Quantity < 0 {
		return NewValidationError("quantity", "cannot be negative")
	}
	if p.Price < 0 {
		return NewValidationError("price", "cannot be negative")
	}
	return nil
}

// Apply sets an editable field from an already collected value
func (p *Product) Apply(field ProductField, value string) error {
	switch field {
	case FieldCompanyName:
		if strings.TrimSpace(value) == "" {
			return NewValidationError(string(field), "is required")
		}
		p.CompanyName = strings.TrimSpace(value)
	case FieldImageURL:
		p.ImageURL = strings.TrimSpace(value)
	case FieldCategory:
		p.Category = strings.TrimSpace(value)
	case FieldPrice:
		price, err := ParsePrice(value)
		if err != nil {
			return err
		}
		p.Price = price
	default:
		return NewValidationError("field", "is not editable")
	}
	return nil
}

// FieldValue returns the current value of an editable field as text
func (p *Product) FieldValue(field ProductField) string {
	switch field {
	case FieldCompanyName:
		return p.CompanyName
	case FieldImageURL:
		return p.ImageURL
	case FieldCategory:
		return p.Category
	case FieldPrice:
		return FormatPrice(p.Price)
	}
	return ""
}

// StockValue is price times quantity
func (p *Product) StockValue() decimal.Decimal {
	return decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// IsLowStock reports whether the quantity is at or below the threshold
func (p *Product) IsLowStock(threshold int) bool {
	return p.Quantity <= threshold
}

// ParsePrice parses a non-negative decimal price
func ParsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, NewValidationError("price", "must be a number")
	}
	if d.IsNegative() {
		return 0, NewValidationError("price", "cannot be negative")
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0, NewValidationError("price", "is too large")
	}
	return f, nil
}

// FormatPrice renders a price without trailing zeros
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).String()
}

// ParseQuantity parses a whole number that is zero or more
func ParseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, NewValidationError("quantity", "must be a whole number")
	}
	if n < 0 {
		return 0, NewValidationError("quantity", "cannot be negative")
	}
	return n, nil
}

// ParseAmount parses a strictly positive whole number
func ParseAmount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, NewValidationError("amount", "must be a whole number")
	}
	if n <= 0 {
		return 0, NewValidationError("amount", "must be greater than zero")
	}
	return n, nil
}

// ParseThreshold parses a low stock threshold
func ParseThreshold(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, NewValidationError("threshold", "must be a whole number")
	}
	if n < 0 {
		return 0, NewValidationError("threshold", "cannot be negative")
	}
	return n, nil
}

// ParseIdentity parses a numeric requester identity
func ParseIdentity(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, NewValidationError("id", "must be a numeric user id")
	}
	return id, nil
}
