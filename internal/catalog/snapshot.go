package catalog

import (
	"context"
	"sort"

	"github.com/dancrook1/w2f-config/internal/domain"
)

// Snapshot is an immutable product set fetched once per request.
// Evaluation and pricing run against it without further I/O, so
// re-evaluating the same snapshot always yields the same result.
type Snapshot struct {
	products map[int64]*domain.Product
}

// Product implements domain.ProductResolver.
func (s *Snapshot) Product(id int64) *domain.Product {
	if s == nil {
		return nil
	}
	return s.products[id]
}

// Len returns the number of resolved products in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.products)
}

// InCategories returns the purchasable snapshot products belonging to
// any of the given categories, sorted by id for stable iteration.
func (s *Snapshot) InCategories(categoryIDs []int64) []*domain.Product {
	if s == nil || len(categoryIDs) == 0 {
		return nil
	}

	want := make(map[int64]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		want[id] = true
	}

	var out []*domain.Product
	for _, p := range s.products {
		if !p.Purchasable {
			continue
		}
		for _, catID := range p.CategoryIDs {
			if want[catID] {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BuildSnapshot batch-fetches every product id referenced by the
// configurator's slots and the candidate configuration in one round
// trip, then folds in the products of all slot categories. Ids that do
// not resolve are simply absent from the snapshot.
func BuildSnapshot(ctx context.Context, cat domain.Catalog, conf *domain.Configurator, cfgs ...domain.Configuration) (*Snapshot, error) {
	var ids []int64
	var categoryIDs []int64
	for i := range conf.Slots {
		ids = append(ids, conf.Slots[i].ProductIDs...)
		categoryIDs = append(categoryIDs, conf.Slots[i].CategoryIDs...)
	}
	for _, cfg := range cfgs {
		for _, id := range cfg {
			ids = append(ids, id)
		}
	}
	for _, id := range conf.DefaultConfiguration {
		ids = append(ids, id)
	}

	products, err := cat.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	if len(categoryIDs) > 0 {
		inCategories, err := cat.ProductsInCategories(ctx, dedupe(categoryIDs))
		if err != nil {
			return nil, err
		}
		for _, p := range inCategories {
			products[p.ID] = p
		}
	}

	return &Snapshot{products: products}, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
