package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/pricing"
)

// AssembleOrder attaches identity, totals and timestamps to the pure
// line projection. The default-configuration discount scales the lines
// so their sum lands on the merchant-set default price.
func AssembleOrder(composer *pricing.Composer, conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, products domain.ProductResolver) *domain.Order {
	lines := BuildLines(composer, conf, cfg, qty, products)

	var subtotal float64
	for _, line := range lines {
		subtotal += line.LineTotal
	}

	isDefault := composer.IsDefault(conf, cfg)
	if isDefault && conf.DefaultPrice > 0 && conf.DefaultPrice < subtotal {
		lines = AllocateDiscount(lines, subtotal, conf.DefaultPrice)
		subtotal = 0
		for _, line := range lines {
			subtotal += line.LineTotal
		}
	}

	warrantyCost := composer.WarrantyCost(conf, cfg, qty, products)

	quantities := make(domain.Quantities, len(qty))
	for k, v := range qty {
		quantities[k] = v
	}

	return &domain.Order{
		ID:             uuid.New().String(),
		ConfiguratorID: conf.ID,
		Configuration:  cfg.Clone(),
		Quantities:     quantities,
		Lines:          lines,
		Subtotal:       subtotal,
		WarrantyCost:   warrantyCost,
		Total:          subtotal + warrantyCost,
		Default:        isDefault,
		Status:         domain.OrderStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}
