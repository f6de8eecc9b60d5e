package pricing

import (
	"testing"

	"github.com/dancrook1/w2f-config/internal/domain"
)

type testProducts map[int64]*domain.Product

func (p testProducts) Product(id int64) *domain.Product {
	return p[id]
}

func price(id int64, name string, exTax float64) *domain.Product {
	return &domain.Product{
		ID:           id,
		Name:         name,
		PriceExclTax: exTax,
		PriceInclTax: exTax * 1.2,
		Purchasable:  true,
	}
}

func testConfigurator() *domain.Configurator {
	return &domain.Configurator{
		ID:   1,
		Name: "Gaming PC",
		Slots: []domain.Slot{
			{ID: "cpu", MinQuantity: 1, MaxQuantity: 99},
			{ID: "gpu", MinQuantity: 1, MaxQuantity: 99},
			{ID: "ram", EnableQuantity: true, MinQuantity: 1, MaxQuantity: 4},
			{ID: domain.SlotWarranty, Optional: true, System: true, MinQuantity: 1, MaxQuantity: 1},
		},
	}
}

func newComposer(brackets ...domain.PriceBracket) *Composer {
	w := NewWarranty()
	w.Reload(brackets, nil)
	return NewComposer(w, domain.PricingConfig{StandardTaxRate: 0.20})
}

func TestPriceWithWarrantyBracket(t *testing.T) {
	products := testProducts{
		101: price(101, "CPU", 100),
		201: price(201, "GPU", 50),
	}
	composer := newComposer(domain.PriceBracket{Min: 0, Max: 200, Cost: 10})
	conf := testConfigurator()

	got := composer.Price(conf, domain.Configuration{"cpu": 101, "gpu": 201}, nil, products, false)
	if got != 160 {
		t.Errorf("expected 160.00, got %.2f", got)
	}
}

func TestQuantityHonoredOnlyWhenEnabled(t *testing.T) {
	products := testProducts{
		301: price(301, "RAM", 20),
	}
	composer := newComposer()
	conf := testConfigurator()

	t.Run("Enabled", func(t *testing.T) {
		got := composer.Price(conf, domain.Configuration{"ram": 301}, domain.Quantities{"ram": 4}, products, false)
		if got != 80 {
			t.Errorf("expected 80.00, got %.2f", got)
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		conf := testConfigurator()
		conf.Slots[2].EnableQuantity = false

		got := composer.Price(conf, domain.Configuration{"ram": 301}, domain.Quantities{"ram": 4}, products, false)
		if got != 20 {
			t.Errorf("expected quantity to be ignored, got %.2f", got)
		}
	})
}

func TestPriceMonotonicInQuantity(t *testing.T) {
	products := testProducts{301: price(301, "RAM", 20)}
	composer := newComposer()
	conf := testConfigurator()
	cfg := domain.Configuration{"ram": 301}

	prev := 0.0
	for q := 1; q <= 4; q++ {
		got := composer.Price(conf, cfg, domain.Quantities{"ram": q}, products, false)
		if got < prev {
			t.Errorf("price decreased from %.2f to %.2f at quantity %d", prev, got, q)
		}
		prev = got
	}
}

func TestEmptyConfigurationPrices(t *testing.T) {
	composer := newComposer()
	conf := testConfigurator()

	got := composer.Price(conf, domain.Configuration{}, nil, testProducts{}, false)
	if got != 0 {
		t.Errorf("expected 0 for empty configuration, got %.2f", got)
	}

	// A zero-cost-sum bracket still applies to an empty configuration.
	composer = newComposer(domain.PriceBracket{Min: 0, Max: 100, Cost: 5})
	got = composer.Price(conf, domain.Configuration{}, nil, testProducts{}, false)
	if got != 5 {
		t.Errorf("expected bracket cost alone, got %.2f", got)
	}
}

func TestWarrantyBaseExcludesWarrantySlot(t *testing.T) {
	products := testProducts{
		101: price(101, "CPU", 150),
		901: price(901, "3 Year Warranty", 100),
	}
	// Bracket matches the 150 component sum but not 250.
	composer := newComposer(domain.PriceBracket{Min: 100, Max: 200, Cost: 25})
	conf := testConfigurator()

	cfg := domain.Configuration{"cpu": 101, domain.SlotWarranty: 901}
	got := composer.Price(conf, cfg, nil, products, false)
	// 150 + 100 (warranty product) + 25 (bracket keyed on 150)
	if got != 275 {
		t.Errorf("expected 275.00, got %.2f", got)
	}
}

func TestBracketFirstMatchWins(t *testing.T) {
	w := NewWarranty()
	w.Reload([]domain.PriceBracket{
		{Min: 100, Max: 300, Cost: 30},
		{Min: 0, Max: 200, Cost: 10},
	}, nil)

	// Sorted by min: the 0-200 bracket is consulted first.
	if got := w.BaseCost(150); got != 10 {
		t.Errorf("expected first bracket in sorted order to win, got %.2f", got)
	}
	if got := w.BaseCost(250); got != 30 {
		t.Errorf("expected 30 for 250, got %.2f", got)
	}
	if got := w.BaseCost(301); got != 0 {
		t.Errorf("expected 0 when no bracket matches, got %.2f", got)
	}
	// Inclusive bounds.
	if got := w.BaseCost(300); got != 30 {
		t.Errorf("expected inclusive upper bound match, got %.2f", got)
	}
}

func TestWarrantyTaxApplied(t *testing.T) {
	products := testProducts{101: price(101, "CPU", 100)}
	composer := newComposer(domain.PriceBracket{Min: 0, Max: 200, Cost: 10})
	conf := testConfigurator()
	cfg := domain.Configuration{"cpu": 101}

	got := composer.Price(conf, cfg, nil, products, true)
	// 120 (incl tax) + 10 * 1.2
	if got != 132 {
		t.Errorf("expected 132.00, got %.2f", got)
	}
}

func TestIsDefault(t *testing.T) {
	conf := testConfigurator()
	conf.DefaultConfiguration = domain.Configuration{"cpu": 101, "gpu": 202}
	composer := newComposer()

	tests := []struct {
		name string
		cfg  domain.Configuration
		want bool
	}{
		{"ExactMatch", domain.Configuration{"cpu": 101, "gpu": 202}, true},
		{"ExtraKey", domain.Configuration{"cpu": 101, "gpu": 202, "ram": 303}, false},
		{"MissingKey", domain.Configuration{"cpu": 101}, false},
		{"ChangedValue", domain.Configuration{"cpu": 101, "gpu": 999}, false},
		{"Empty", domain.Configuration{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := composer.IsDefault(conf, tt.cfg); got != tt.want {
				t.Errorf("IsDefault(%v) = %v, want %v", tt.cfg, got, tt.want)
			}
		})
	}
}

func TestPriceForDisplayUsesDefaultPrice(t *testing.T) {
	products := testProducts{
		101: price(101, "CPU", 100),
		201: price(201, "GPU", 50),
	}
	conf := testConfigurator()
	conf.DefaultConfiguration = domain.Configuration{"cpu": 101, "gpu": 201}
	conf.DefaultPrice = 120
	composer := newComposer()

	t.Run("DefaultMatched", func(t *testing.T) {
		got := composer.PriceForDisplay(conf, domain.Configuration{"cpu": 101, "gpu": 201}, nil, products, false)
		if got != 120 {
			t.Errorf("expected merchant default price, got %.2f", got)
		}
	})

	t.Run("DefaultMatchedWithTax", func(t *testing.T) {
		got := composer.PriceForDisplay(conf, domain.Configuration{"cpu": 101, "gpu": 201}, nil, products, true)
		if got != 144 {
			t.Errorf("expected 144.00, got %.2f", got)
		}
	})

	t.Run("Modified", func(t *testing.T) {
		got := composer.PriceForDisplay(conf, domain.Configuration{"cpu": 101}, nil, products, false)
		if got != 100 {
			t.Errorf("expected live component sum, got %.2f", got)
		}
	})
}

func TestComponentPrices(t *testing.T) {
	products := testProducts{
		101: price(101, "CPU", 100),
		301: price(301, "RAM", 20),
	}
	composer := newComposer()
	conf := testConfigurator()

	lines := composer.ComponentPrices(conf,
		domain.Configuration{"cpu": 101, "ram": 301, "gpu": 999},
		domain.Quantities{"ram": 2}, products, false)

	// gpu 999 is unresolvable and must be omitted.
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].SlotID != "cpu" || lines[0].LineTotal != 100 {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if lines[1].SlotID != "ram" || lines[1].Quantity != 2 || lines[1].LineTotal != 40 {
		t.Errorf("unexpected ram line: %+v", lines[1])
	}
}
