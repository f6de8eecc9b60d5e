// Package catalog implements the product read layer: a repository-backed
// catalog with a cache in front, and immutable per-request snapshots the
// engine and composer evaluate against.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dancrook1/w2f-config/internal/domain"
)

// productKeyPrefix namespaces catalog entries in the shared cache.
const productKeyPrefix = "product:"

// Service resolves products against the repository, caching individual
// product reads. It implements domain.Catalog.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// New creates a catalog service. cache may be nil to disable caching.
func New(repo domain.Repository, cache domain.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// GetProduct resolves a single product, consulting the cache first.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if p := s.cached(ctx, id); p != nil {
		return p, nil
	}

	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, p)
	return p, nil
}

// GetProducts resolves a batch of ids. Cached products are served
// locally; the rest are fetched from the repository in one query. Ids
// that do not resolve are absent from the returned map.
func (s *Service) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))
	var missing []int64
	seen := make(map[int64]bool, len(ids))

	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		if p := s.cached(ctx, id); p != nil {
			out[id] = p
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		fetched, err := s.repo.GetProducts(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch products: %w", err)
		}
		for id, p := range fetched {
			out[id] = p
			s.store(ctx, p)
		}
	}

	return out, nil
}

// ProductsInCategories returns all products in any of the categories.
// Category listings are not cached; they back slot option resolution
// where freshness matters more than latency.
func (s *Service) ProductsInCategories(ctx context.Context, categoryIDs []int64) ([]*domain.Product, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	return s.repo.GetProductsInCategories(ctx, categoryIDs)
}

// Invalidate drops a product from the cache, e.g. after a catalog write.
func (s *Service) Invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, productKey(id)); err != nil {
		slog.Warn("failed to invalidate cached product", "product_id", id, "error", err)
	}
}

func (s *Service) cached(ctx context.Context, id int64) *domain.Product {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, productKey(id))
	if err != nil || data == nil {
		return nil
	}
	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

func (s *Service) store(ctx context.Context, p *domain.Product) {
	if s.cache == nil || p == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, productKey(p.ID), data, s.ttl); err != nil {
		slog.Warn("failed to cache product", "product_id", p.ID, "error", err)
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("%s%d", productKeyPrefix, id)
}
