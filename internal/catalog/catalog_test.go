package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dancrook1/w2f-config/internal/cache"
	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/repository"
)

// countingRepo counts product reads so tests can assert which lookups
// the cache absorbed.
type countingRepo struct {
	domain.Repository
	singleReads int
	batchReads  int
}

func (c *countingRepo) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	c.singleReads++
	return c.Repository.GetProduct(ctx, id)
}

func (c *countingRepo) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	c.batchReads++
	return c.Repository.GetProducts(ctx, ids)
}

func newTestCatalog(t *testing.T) (*Service, *countingRepo) {
	t.Helper()
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "catalog_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	products := []*domain.Product{
		{ID: 101, Name: "Ryzen 7", PriceExclTax: 300, Purchasable: true, Attributes: map[string]string{"socket": "AM5"}},
		{ID: 201, Name: "B650 Board", PriceExclTax: 150, Purchasable: true, CategoryIDs: []int64{10}},
		{ID: 202, Name: "Z790 Board", PriceExclTax: 200, Purchasable: true, CategoryIDs: []int64{10}},
		{ID: 203, Name: "OEM Board", PriceExclTax: 120, Purchasable: false, CategoryIDs: []int64{10}},
		{ID: 301, Name: "16GB DDR5", PriceExclTax: 60, Purchasable: true, CategoryIDs: []int64{20}},
	}
	for _, p := range products {
		if err := repo.SaveProduct(ctx, p); err != nil {
			t.Fatalf("failed to seed product %d: %v", p.ID, err)
		}
	}

	store, err := cache.New(domain.CacheConfig{
		Type:         "memory",
		LocalMaxSize: 100,
		LocalTTL:     time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	counting := &countingRepo{Repository: repo}
	return New(counting, store, time.Minute), counting
}

func TestGetProduct(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestCatalog(t)

	t.Run("Found", func(t *testing.T) {
		p, err := svc.GetProduct(ctx, 101)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name != "Ryzen 7" {
			t.Errorf("expected Ryzen 7, got %s", p.Name)
		}
	})

	t.Run("SecondReadServedFromCache", func(t *testing.T) {
		before := repo.singleReads
		if _, err := svc.GetProduct(ctx, 101); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.singleReads != before {
			t.Errorf("expected cached read, repository was hit %d more times", repo.singleReads-before)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.GetProduct(ctx, 999)
		if !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidateForcesRefetch", func(t *testing.T) {
		svc.Invalidate(ctx, 101)
		before := repo.singleReads
		if _, err := svc.GetProduct(ctx, 101); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.singleReads != before+1 {
			t.Errorf("expected repository hit after invalidation, got %d reads", repo.singleReads-before)
		}
	})
}

func TestGetProducts(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestCatalog(t)

	t.Run("BatchFetch", func(t *testing.T) {
		out, err := svc.GetProducts(ctx, []int64{101, 201, 202})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 3 {
			t.Errorf("expected 3 products, got %d", len(out))
		}
	})

	t.Run("CachedEntriesSkipRepository", func(t *testing.T) {
		before := repo.batchReads
		out, err := svc.GetProducts(ctx, []int64{101, 201})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 2 {
			t.Errorf("expected 2 products, got %d", len(out))
		}
		if repo.batchReads != before {
			t.Errorf("expected fully cached batch, repository was hit %d more times", repo.batchReads-before)
		}
	})

	t.Run("UnknownIDsAbsent", func(t *testing.T) {
		out, err := svc.GetProducts(ctx, []int64{101, 999})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := out[999]; ok {
			t.Error("expected unknown id to be absent from result")
		}
		if len(out) != 1 {
			t.Errorf("expected 1 product, got %d", len(out))
		}
	})

	t.Run("DuplicatesAndInvalidIDsIgnored", func(t *testing.T) {
		out, err := svc.GetProducts(ctx, []int64{101, 101, 0, -5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 1 {
			t.Errorf("expected 1 product, got %d", len(out))
		}
	})
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestCatalog(t)

	conf := &domain.Configurator{
		ID: 1,
		Slots: []domain.Slot{
			{ID: "cpu", ProductIDs: []int64{101}},
			{ID: "motherboard", CategoryIDs: []int64{10}},
		},
		DefaultConfiguration: domain.Configuration{"cpu": 101, "motherboard": 201},
	}

	t.Run("ResolvesSlotAndConfigurationProducts", func(t *testing.T) {
		snap, err := BuildSnapshot(ctx, svc, conf, domain.Configuration{"cpu": 101, "motherboard": 202})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, id := range []int64{101, 201, 202} {
			if snap.Product(id) == nil {
				t.Errorf("expected product %d in snapshot", id)
			}
		}
		if snap.Product(301) != nil {
			t.Error("did not expect product 301 in snapshot")
		}
	})

	t.Run("InCategoriesSorted", func(t *testing.T) {
		snap, err := BuildSnapshot(ctx, svc, conf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		boards := snap.InCategories([]int64{10})
		if len(boards) != 2 {
			t.Fatalf("expected 2 boards, got %d", len(boards))
		}
		if boards[0].ID != 201 || boards[1].ID != 202 {
			t.Errorf("expected ids sorted 201,202, got %d,%d", boards[0].ID, boards[1].ID)
		}
	})

	t.Run("InCategoriesSkipsNonPurchasable", func(t *testing.T) {
		snap, err := BuildSnapshot(ctx, svc, conf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range snap.InCategories([]int64{10}) {
			if p.ID == 203 {
				t.Error("expected non-purchasable board 203 to be excluded")
			}
		}
	})

	t.Run("UnresolvedConfigurationIDAbsent", func(t *testing.T) {
		snap, err := BuildSnapshot(ctx, svc, conf, domain.Configuration{"cpu": 999})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap.Product(999) != nil {
			t.Error("expected unresolvable id to be absent")
		}
	})

	t.Run("NilSnapshotIsEmpty", func(t *testing.T) {
		var snap *Snapshot
		if snap.Product(101) != nil {
			t.Error("expected nil product from nil snapshot")
		}
		if got := snap.InCategories([]int64{10}); got != nil {
			t.Errorf("expected nil listing from nil snapshot, got %v", got)
		}
	})
}
