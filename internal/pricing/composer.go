package pricing

import (
	"github.com/dancrook1/w2f-config/internal/domain"
)

// Composer computes configuration prices. It is stateless apart from
// the injected warranty snapshot and the standard tax rate, so a single
// composer serves concurrent requests.
type Composer struct {
	warranty *Warranty
	taxRate  float64
}

// NewComposer creates a price composer.
func NewComposer(warranty *Warranty, cfg domain.PricingConfig) *Composer {
	return &Composer{
		warranty: warranty,
		taxRate:  cfg.StandardTaxRate,
	}
}

// ComponentPrice is the per-slot price breakdown consumed by the order
// projection.
type ComponentPrice struct {
	SlotID    string  `json:"slotId"`
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

// Price computes the total for a candidate configuration:
// component sum (quantity honored only on quantity-enabled slots) plus
// the bracketed warranty add-on, clamped to zero. Unresolvable products
// contribute nothing.
func (c *Composer) Price(conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, products domain.ProductResolver, includeTax bool) float64 {
	componentSum := c.componentSum(conf, cfg, qty, products, includeTax, false)

	warrantyCost := c.warranty.BaseCost(c.componentSum(conf, cfg, qty, products, false, true))
	if includeTax {
		warrantyCost += warrantyCost * c.taxRate
	}

	total := componentSum + warrantyCost
	if total < 0 {
		return 0
	}
	return total
}

// PriceForDisplay returns the price a storefront should show: the
// merchant-set default price when the configuration matches the saved
// default exactly, otherwise the live composed price.
func (c *Composer) PriceForDisplay(conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, products domain.ProductResolver, includeTax bool) float64 {
	if c.IsDefault(conf, cfg) && conf.DefaultPrice > 0 {
		price := conf.DefaultPrice
		if includeTax {
			price += price * c.taxRate
		}
		return price
	}
	return c.Price(conf, cfg, qty, products, includeTax)
}

// WarrantyCost returns the bracket add-on for the configuration,
// tax-exclusive.
func (c *Composer) WarrantyCost(conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, products domain.ProductResolver) float64 {
	return c.warranty.BaseCost(c.componentSum(conf, cfg, qty, products, false, true))
}

// ComponentPrices returns the per-slot breakdown in slot order.
// Unselected slots and unresolvable products are omitted.
func (c *Composer) ComponentPrices(conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, products domain.ProductResolver, includeTax bool) []ComponentPrice {
	var lines []ComponentPrice
	for i := range conf.Slots {
		slot := &conf.Slots[i]
		productID := cfg[slot.ID]
		if productID <= 0 {
			continue
		}
		p := products.Product(productID)
		if p == nil {
			continue
		}
		quantity := slot.Quantity(qty[slot.ID])
		unit := p.UnitPrice(includeTax)
		lines = append(lines, ComponentPrice{
			SlotID:    slot.ID,
			ProductID: productID,
			Name:      p.Name,
			Quantity:  quantity,
			UnitPrice: unit,
			LineTotal: unit * float64(quantity),
		})
	}
	return lines
}

// IsDefault reports whether the configuration matches the saved default
// exactly: same keys, same values, order-independent.
func (c *Composer) IsDefault(conf *domain.Configurator, cfg domain.Configuration) bool {
	if len(conf.DefaultConfiguration) == 0 {
		return false
	}
	return cfg.Equal(conf.DefaultConfiguration)
}

func (c *Composer) componentSum(conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, products domain.ProductResolver, includeTax, skipWarranty bool) float64 {
	var sum float64
	for i := range conf.Slots {
		slot := &conf.Slots[i]
		if skipWarranty && slot.ID == domain.SlotWarranty {
			continue
		}
		productID := cfg[slot.ID]
		if productID <= 0 {
			continue
		}
		p := products.Product(productID)
		if p == nil {
			continue
		}
		sum += p.UnitPrice(includeTax) * float64(slot.Quantity(qty[slot.ID]))
	}
	return sum
}
