// Package checkout projects accepted configurations into orders.
package checkout

import (
	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/pricing"
)

// BuildLines projects a configuration into order lines using the
// composer's per-slot breakdown. Amounts are tax-exclusive; tax is a
// storefront display concern. Pure: no I/O, no ids, no clock.
func BuildLines(composer *pricing.Composer, conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, products domain.ProductResolver) []domain.OrderLine {
	components := composer.ComponentPrices(conf, cfg, qty, products, false)

	lines := make([]domain.OrderLine, 0, len(components))
	for _, c := range components {
		lines = append(lines, domain.OrderLine{
			SlotID:    c.SlotID,
			ProductID: c.ProductID,
			Name:      c.Name,
			Quantity:  c.Quantity,
			UnitPrice: c.UnitPrice,
			LineTotal: c.LineTotal,
		})
	}
	return lines
}

// AllocateDiscount scales each line proportionally so the line totals
// sum to the merchant-set default price instead of the raw component
// sum. Used when an order matches the default configuration and the
// default price undercuts the composed price. Returns the lines
// unchanged when no discount applies.
func AllocateDiscount(lines []domain.OrderLine, componentSum, defaultPrice float64) []domain.OrderLine {
	if componentSum <= 0 || defaultPrice <= 0 || defaultPrice >= componentSum {
		return lines
	}

	factor := 1 - (componentSum-defaultPrice)/componentSum

	out := make([]domain.OrderLine, len(lines))
	for i, line := range lines {
		line.UnitPrice *= factor
		line.LineTotal *= factor
		out[i] = line
	}
	return out
}
