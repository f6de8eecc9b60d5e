package domain

// PriceBracket maps a tax-exclusive component price range to a flat
// warranty add-on cost. Brackets are matched first-in-store-order with
// inclusive bounds; overlap is tolerated.
type PriceBracket struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Cost float64 `json:"cost"`
}

// Matches reports whether the given tax-exclusive sum falls in this
// bracket.
func (b PriceBracket) Matches(sum float64) bool {
	return sum >= b.Min && sum <= b.Max
}

// WarrantyPlans describes the options of the system warranty slot.
type WarrantyPlans struct {
	ProductIDs       []int64 `json:"productIds"`
	DefaultProductID int64   `json:"defaultProductId,omitempty"`
}
