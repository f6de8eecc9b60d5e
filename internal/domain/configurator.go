package domain

// SlotWarranty is the id of the system-provided warranty slot appended
// to every configurator's slot list.
const SlotWarranty = "warranty"

// Configurator is a sellable build-to-order product composed of slots.
type Configurator struct {
	ID                   int64         `json:"id"`
	Name                 string        `json:"name"`
	Slots                []Slot        `json:"slots"`
	DefaultConfiguration Configuration `json:"defaultConfiguration,omitempty"`
	DefaultPrice         float64       `json:"defaultPrice"` // tax-exclusive, merchant-set
	Tabs                 []Tab         `json:"tabs,omitempty"`
}

// Slot returns the slot with the given id, or nil.
func (c *Configurator) Slot(id string) *Slot {
	for i := range c.Slots {
		if c.Slots[i].ID == id {
			return &c.Slots[i]
		}
	}
	return nil
}

// Slot is one configurable position in a configurator.
type Slot struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Optional       bool    `json:"optional"`
	EnableQuantity bool    `json:"enableQuantity"`
	MinQuantity    int     `json:"minQuantity"`
	MaxQuantity    int     `json:"maxQuantity"`
	ProductIDs     []int64 `json:"productIds,omitempty"`
	CategoryIDs    []int64 `json:"categoryIds,omitempty"`
	// System marks slots injected by the service itself, such as the
	// warranty slot. System slots are always optional.
	System bool `json:"system,omitempty"`
}

// Quantity clamps a requested quantity for this slot. Slots without
// quantity support always count as one.
func (s *Slot) Quantity(requested int) int {
	if !s.EnableQuantity {
		return 1
	}
	if requested < 1 {
		return 1
	}
	return requested
}

// Tab groups slots for display purposes only.
type Tab struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	SlotIDs []string `json:"slotIds,omitempty"`
}

// Configuration is a candidate slot-to-product mapping. Partial
// configurations are a first-class input to evaluation.
type Configuration map[string]int64

// Selected reports whether the slot holds a positive product id.
func (c Configuration) Selected(slotID string) bool {
	return c[slotID] > 0
}

// Clone returns a copy of the configuration.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// With returns a copy with one slot substituted. Used for what-if checks.
func (c Configuration) With(slotID string, productID int64) Configuration {
	out := c.Clone()
	out[slotID] = productID
	return out
}

// Equal reports exact key and value equality, order-independent.
func (c Configuration) Equal(other Configuration) bool {
	if len(c) != len(other) {
		return false
	}
	for k, v := range c {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Quantities maps slot ids to requested quantities. Only meaningful for
// slots with quantity support enabled.
type Quantities map[string]int
