// Package pricing implements price composition for candidate
// configurations: component sums, the bracketed warranty add-on, and
// default-configuration reconciliation.
package pricing

import (
	"sort"
	"sync"

	"github.com/dancrook1/w2f-config/internal/domain"
)

// Warranty holds the warranty bracket and plan snapshot. The snapshot
// is swapped atomically on reload, mirroring the rule engine lifecycle.
type Warranty struct {
	mu       sync.RWMutex
	brackets []domain.PriceBracket
	plans    domain.WarrantyPlans
}

// NewWarranty creates an empty warranty service.
func NewWarranty() *Warranty {
	return &Warranty{}
}

// Reload replaces the bracket and plan snapshot. Brackets are kept
// sorted by their lower bound; lookup is first-match in that order.
func (w *Warranty) Reload(brackets []domain.PriceBracket, plans *domain.WarrantyPlans) {
	sorted := make([]domain.PriceBracket, len(brackets))
	copy(sorted, brackets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	w.mu.Lock()
	w.brackets = sorted
	if plans != nil {
		w.plans = *plans
	} else {
		w.plans = domain.WarrantyPlans{}
	}
	w.mu.Unlock()
}

// Brackets returns the current bracket snapshot.
func (w *Warranty) Brackets() []domain.PriceBracket {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.PriceBracket, len(w.brackets))
	copy(out, w.brackets)
	return out
}

// Plans returns the current warranty plan products.
func (w *Warranty) Plans() domain.WarrantyPlans {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.plans
}

// BaseCost looks up the flat warranty add-on for a tax-exclusive
// component sum. Returns 0 when no bracket matches. Brackets use
// inclusive bounds and the first match wins.
func (w *Warranty) BaseCost(componentSum float64) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, b := range w.brackets {
		if b.Matches(componentSum) {
			if b.Cost < 0 {
				return 0
			}
			return b.Cost
		}
	}
	return 0
}

// Slot returns the system warranty slot for the current plan snapshot.
func (w *Warranty) Slot() domain.Slot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return domain.Slot{
		ID:          domain.SlotWarranty,
		Title:       "Warranty",
		Optional:    true,
		MinQuantity: 1,
		MaxQuantity: 1,
		ProductIDs:  append([]int64(nil), w.plans.ProductIDs...),
		System:      true,
	}
}
