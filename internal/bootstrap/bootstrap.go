// Package bootstrap seeds an empty store from a YAML file so a fresh
// single-node install starts with a working catalog, configurator and
// rule set.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/repository"
)

// Seed is the parsed seed file. Every section is optional.
type Seed struct {
	Products      []Product      `yaml:"products"`
	Configurators []Configurator `yaml:"configurators"`
	Rules         []Rule         `yaml:"rules"`
	Brackets      []Bracket      `yaml:"brackets"`
	Warranty      *Warranty      `yaml:"warranty"`
}

// Product is the seed file shape of a catalog product. Purchasable
// defaults to true when omitted.
type Product struct {
	ID           int64             `yaml:"id"`
	Name         string            `yaml:"name"`
	PriceInclTax float64           `yaml:"priceInclTax"`
	PriceExclTax float64           `yaml:"priceExclTax"`
	TaxClass     string            `yaml:"taxClass"`
	Attributes   map[string]string `yaml:"attributes"`
	Meta         map[string]string `yaml:"meta"`
	CategoryIDs  []int64           `yaml:"categoryIds"`
	Purchasable  *bool             `yaml:"purchasable"`
}

// Configurator is the seed file shape of a configurator definition.
type Configurator struct {
	ID                   int64            `yaml:"id"`
	Name                 string           `yaml:"name"`
	Slots                []Slot           `yaml:"slots"`
	DefaultConfiguration map[string]int64 `yaml:"defaultConfiguration"`
	DefaultPrice         float64          `yaml:"defaultPrice"`
	Tabs                 []Tab            `yaml:"tabs"`
}

// Slot is the seed file shape of a configurator slot.
type Slot struct {
	ID             string  `yaml:"id"`
	Title          string  `yaml:"title"`
	Optional       bool    `yaml:"optional"`
	EnableQuantity bool    `yaml:"enableQuantity"`
	MinQuantity    int     `yaml:"minQuantity"`
	MaxQuantity    int     `yaml:"maxQuantity"`
	ProductIDs     []int64 `yaml:"productIds"`
	CategoryIDs    []int64 `yaml:"categoryIds"`
}

// Tab is the seed file shape of a display tab.
type Tab struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	SlotIDs []string `yaml:"slotIds"`
}

// Rule is the seed file shape of a compatibility rule. Conditions use
// the same flat string map the admin API accepts. Active defaults to
// true when omitted.
type Rule struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Action     string            `yaml:"action"`
	Message    string            `yaml:"message"`
	Position   int               `yaml:"position"`
	Active     *bool             `yaml:"active"`
	Conditions map[string]string `yaml:"conditions"`
}

// Bracket is the seed file shape of a warranty price bracket.
type Bracket struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Cost float64 `yaml:"cost"`
}

// Warranty is the seed file shape of the warranty plan set.
type Warranty struct {
	ProductIDs       []int64 `yaml:"productIds"`
	DefaultProductID int64   `yaml:"defaultProductId"`
}

// Load reads and parses a seed file.
func Load(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// Apply writes every seed section to the store. Rule conditions are
// decoded into their typed form so malformed seeds fail loudly here
// rather than silently at evaluation time.
func Apply(ctx context.Context, repo domain.Repository, seed *Seed) error {
	for i := range seed.Products {
		p := seed.Products[i].toDomain()
		if err := repo.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to seed product %d: %w", p.ID, err)
		}
	}

	for i := range seed.Configurators {
		conf := seed.Configurators[i].toDomain()
		if err := repo.SaveConfigurator(ctx, conf); err != nil {
			return fmt.Errorf("failed to seed configurator %d: %w", conf.ID, err)
		}
	}

	for i := range seed.Rules {
		rule, err := seed.Rules[i].toDomain()
		if err != nil {
			return fmt.Errorf("failed to decode seed rule %q: %w", seed.Rules[i].ID, err)
		}
		if err := repo.SaveRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to seed rule %q: %w", rule.ID, err)
		}
	}

	if len(seed.Brackets) > 0 {
		brackets := make([]domain.PriceBracket, len(seed.Brackets))
		for i, b := range seed.Brackets {
			brackets[i] = domain.PriceBracket{Min: b.Min, Max: b.Max, Cost: b.Cost}
		}
		if err := repo.SaveBrackets(ctx, brackets); err != nil {
			return fmt.Errorf("failed to seed warranty brackets: %w", err)
		}
	}

	if seed.Warranty != nil {
		plans := &domain.WarrantyPlans{
			ProductIDs:       seed.Warranty.ProductIDs,
			DefaultProductID: seed.Warranty.DefaultProductID,
		}
		if err := repo.SaveWarrantyPlans(ctx, plans); err != nil {
			return fmt.Errorf("failed to seed warranty plans: %w", err)
		}
	}

	return nil
}

// Run loads the seed file and applies it when the store does not yet
// hold the first seeded configurator. Returns whether the seed was
// applied. An empty path is a no-op.
func Run(ctx context.Context, repo domain.Repository, path string) (bool, error) {
	if path == "" {
		return false, nil
	}

	seed, err := Load(path)
	if err != nil {
		return false, err
	}

	if len(seed.Configurators) > 0 {
		_, err := repo.GetConfigurator(ctx, seed.Configurators[0].ID)
		if err == nil {
			slog.Info("seed skipped, store already populated", "path", path)
			return false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return false, err
		}
	}

	if err := Apply(ctx, repo, seed); err != nil {
		return false, err
	}

	slog.Info("store seeded",
		"path", path,
		"products", len(seed.Products),
		"configurators", len(seed.Configurators),
		"rules", len(seed.Rules),
		"brackets", len(seed.Brackets),
	)
	return true, nil
}

func (p *Product) toDomain() *domain.Product {
	purchasable := true
	if p.Purchasable != nil {
		purchasable = *p.Purchasable
	}
	return &domain.Product{
		ID:           p.ID,
		Name:         p.Name,
		PriceInclTax: p.PriceInclTax,
		PriceExclTax: p.PriceExclTax,
		TaxClass:     p.TaxClass,
		Attributes:   p.Attributes,
		Meta:         p.Meta,
		CategoryIDs:  p.CategoryIDs,
		Purchasable:  purchasable,
	}
}

func (c *Configurator) toDomain() *domain.Configurator {
	conf := &domain.Configurator{
		ID:                   c.ID,
		Name:                 c.Name,
		DefaultConfiguration: c.DefaultConfiguration,
		DefaultPrice:         c.DefaultPrice,
	}
	for _, s := range c.Slots {
		conf.Slots = append(conf.Slots, domain.Slot{
			ID:             s.ID,
			Title:          s.Title,
			Optional:       s.Optional,
			EnableQuantity: s.EnableQuantity,
			MinQuantity:    s.MinQuantity,
			MaxQuantity:    s.MaxQuantity,
			ProductIDs:     s.ProductIDs,
			CategoryIDs:    s.CategoryIDs,
		})
	}
	for _, t := range c.Tabs {
		conf.Tabs = append(conf.Tabs, domain.Tab{
			ID:      t.ID,
			Title:   t.Title,
			SlotIDs: t.SlotIDs,
		})
	}
	return conf
}

func (r *Rule) toDomain() (*domain.Rule, error) {
	conditions, err := domain.DecodeConditions(domain.RuleType(r.Type), r.Conditions)
	if err != nil {
		return nil, err
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &domain.Rule{
		ID:         r.ID,
		Name:       r.Name,
		Type:       domain.RuleType(r.Type),
		Action:     domain.RuleAction(r.Action),
		Active:     active,
		Message:    r.Message,
		Position:   r.Position,
		Conditions: conditions,
	}, nil
}
