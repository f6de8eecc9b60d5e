// Package domain defines the core interfaces and types for the configurator.
package domain

import (
	"context"
)

// Product is the read model for a catalog product.
type Product struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	PriceInclTax float64           `json:"priceInclTax"`
	PriceExclTax float64           `json:"priceExclTax"`
	TaxClass     string            `json:"taxClass"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
	CategoryIDs  []int64           `json:"categoryIds,omitempty"`
	Purchasable  bool              `json:"purchasable"`
}

// UnitPrice returns the product price with or without tax.
func (p *Product) UnitPrice(includeTax bool) float64 {
	if includeTax {
		return p.PriceInclTax
	}
	return p.PriceExclTax
}

// AttributeValue resolves a named attribute, falling back to product meta.
func (p *Product) AttributeValue(name string) string {
	if v, ok := p.Attributes[name]; ok && v != "" {
		return v
	}
	return p.Meta[name]
}

// MetaValue reads a value strictly from product meta.
func (p *Product) MetaValue(key string) string {
	return p.Meta[key]
}

// InCategory reports whether the product belongs to the given category.
func (p *Product) InCategory(categoryID int64) bool {
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Catalog resolves product identifiers against the system of record.
type Catalog interface {
	// GetProduct returns a single product. Returns ErrNotFound-style
	// errors from the backing store when the id does not resolve.
	GetProduct(ctx context.Context, id int64) (*Product, error)

	// GetProducts resolves a batch of ids in one round trip.
	// Ids that do not resolve are absent from the returned map.
	GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error)

	// ProductsInCategories returns all products belonging to any of the
	// given categories.
	ProductsInCategories(ctx context.Context, categoryIDs []int64) ([]*Product, error)
}

// ProductResolver is a pure lookup over an already-fetched product set.
// Evaluation and pricing run against a resolver so they never do I/O.
type ProductResolver interface {
	// Product returns the product for id, or nil if it is unknown.
	Product(id int64) *Product
}
