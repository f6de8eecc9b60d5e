// Package configurator orchestrates validation, evaluation, pricing
// and submission for build-to-order products.
package configurator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dancrook1/w2f-config/internal/catalog"
	"github.com/dancrook1/w2f-config/internal/checkout"
	"github.com/dancrook1/w2f-config/internal/domain"
	"github.com/dancrook1/w2f-config/internal/pricing"
	"github.com/dancrook1/w2f-config/internal/rules"
)

// ErrValidation marks caller-contract violations: unknown slots,
// malformed ids, out-of-range quantities. Distinct from an
// incompatible configuration, which is a normal result.
var ErrValidation = errors.New("invalid request")

// Service wires the catalog, rule engine and price composer into the
// request-level operations the API exposes.
type Service struct {
	repo        domain.Repository
	catalog     domain.Catalog
	engine      *rules.Engine
	composer    *pricing.Composer
	warranty    *pricing.Warranty
	bus         domain.EventBus
	maxParallel int
}

// New creates the orchestrating service.
func New(repo domain.Repository, cat domain.Catalog, engine *rules.Engine, composer *pricing.Composer, warranty *pricing.Warranty, bus domain.EventBus, cfg domain.EngineConfig) *Service {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 8
	}
	return &Service{
		repo:        repo,
		catalog:     cat,
		engine:      engine,
		composer:    composer,
		warranty:    warranty,
		bus:         bus,
		maxParallel: maxParallel,
	}
}

// CheckResult is the outcome of a compatibility check. Rejected
// results carry errors; accepted results may still carry warnings.
type CheckResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// PriceResult is the priced view of a candidate configuration.
type PriceResult struct {
	Total        float64                 `json:"total"`
	WarrantyCost float64                 `json:"warrantyCost"`
	IncludesTax  bool                    `json:"includesTax"`
	Default      bool                    `json:"default"`
	Components   []pricing.ComponentPrice `json:"components,omitempty"`
}

// SlotOptions is the filtered option set for one slot.
type SlotOptions struct {
	SlotID            string             `json:"slotId"`
	AllowedProductIDs []int64            `json:"allowedProductIds"`
	Warnings          map[int64][]string `json:"warnings,omitempty"`
}

// SubmitResult carries either an accepted order or the rejection.
type SubmitResult struct {
	Accepted bool          `json:"accepted"`
	Check    *CheckResult  `json:"check"`
	Order    *domain.Order `json:"order,omitempty"`
}

// Definition returns the configurator with the system warranty slot
// appended when warranty plans are loaded.
func (s *Service) Definition(ctx context.Context, configuratorID int64) (*domain.Configurator, error) {
	conf, err := s.repo.GetConfigurator(ctx, configuratorID)
	if err != nil {
		return nil, err
	}

	plans := s.warranty.Plans()
	if len(plans.ProductIDs) > 0 && conf.Slot(domain.SlotWarranty) == nil {
		conf.Slots = append(conf.Slots, s.warranty.Slot())
	}

	return conf, nil
}

// CheckCompatibility validates a candidate configuration and evaluates
// every active rule against it. A product id the catalog cannot
// resolve counts as unselected.
func (s *Service) CheckCompatibility(ctx context.Context, configuratorID int64, cfg domain.Configuration, qty domain.Quantities) (*CheckResult, error) {
	conf, snap, err := s.prepare(ctx, configuratorID, cfg, qty)
	if err != nil {
		return nil, err
	}

	result := domain.Result{Valid: true}
	result.Merge(s.requiredSlots(conf, cfg, snap))
	result.Merge(s.engine.Evaluate(cfg, snap))

	return &CheckResult{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}, nil
}

// CalculatePrice prices a candidate configuration. Partial and even
// incompatible configurations price normally; compatibility is a
// separate concern.
func (s *Service) CalculatePrice(ctx context.Context, configuratorID int64, cfg domain.Configuration, qty domain.Quantities, includeTax bool) (*PriceResult, error) {
	conf, snap, err := s.prepare(ctx, configuratorID, cfg, qty)
	if err != nil {
		return nil, err
	}

	return &PriceResult{
		Total:        s.composer.PriceForDisplay(conf, cfg, qty, snap, includeTax),
		WarrantyCost: s.composer.WarrantyCost(conf, cfg, qty, snap),
		IncludesTax:  includeTax,
		Default:      s.composer.IsDefault(conf, cfg),
		Components:   s.composer.ComponentPrices(conf, cfg, qty, snap, includeTax),
	}, nil
}

// FilterOptions returns the options of one slot that remain compatible
// with the rest of the configuration, with per-option warnings for the
// survivors.
func (s *Service) FilterOptions(ctx context.Context, configuratorID int64, slotID string, cfg domain.Configuration) (*SlotOptions, error) {
	conf, snap, err := s.prepare(ctx, configuratorID, cfg, nil)
	if err != nil {
		return nil, err
	}

	slot := conf.Slot(slotID)
	if slot == nil {
		return nil, fmt.Errorf("%w: unknown slot %q", ErrValidation, slotID)
	}

	return s.filterSlot(slot, cfg, snap), nil
}

// FilterAllOptions filters every requested slot against one shared
// snapshot, in parallel across slots. Empty slotIDs means all slots.
func (s *Service) FilterAllOptions(ctx context.Context, configuratorID int64, cfg domain.Configuration, slotIDs []string) (map[string]*SlotOptions, error) {
	conf, snap, err := s.prepare(ctx, configuratorID, cfg, nil)
	if err != nil {
		return nil, err
	}

	slots := make([]*domain.Slot, 0, len(conf.Slots))
	if len(slotIDs) == 0 {
		for i := range conf.Slots {
			slots = append(slots, &conf.Slots[i])
		}
	} else {
		for _, id := range slotIDs {
			slot := conf.Slot(id)
			if slot == nil {
				return nil, fmt.Errorf("%w: unknown slot %q", ErrValidation, id)
			}
			slots = append(slots, slot)
		}
	}

	results := make([]*SlotOptions, len(slots))
	sem := make(chan struct{}, s.maxParallel)
	var wg sync.WaitGroup

	for i, slot := range slots {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, slot *domain.Slot) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.filterSlot(slot, cfg, snap)
		}(i, slot)
	}
	wg.Wait()

	out := make(map[string]*SlotOptions, len(results))
	for _, r := range results {
		out[r.SlotID] = r
	}
	return out, nil
}

// Submit runs the full compatibility pipeline and, when accepted,
// projects the configuration into an order and hands it to the bus.
func (s *Service) Submit(ctx context.Context, configuratorID int64, cfg domain.Configuration, qty domain.Quantities) (*SubmitResult, error) {
	conf, snap, err := s.prepare(ctx, configuratorID, cfg, qty)
	if err != nil {
		return nil, err
	}

	result := domain.Result{Valid: true}
	result.Merge(s.requiredSlots(conf, cfg, snap))
	result.Merge(s.engine.Evaluate(cfg, snap))

	check := &CheckResult{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}
	if !check.Valid {
		return &SubmitResult{Accepted: false, Check: check}, nil
	}

	order := checkout.AssembleOrder(s.composer, conf, cfg, qty, snap)

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.bus.Publish(ctx, domain.TopicConfigurationAccepted, payload); err != nil {
		return nil, fmt.Errorf("failed to publish accepted configuration: %w", err)
	}

	slog.Info("configuration accepted",
		"configurator_id", configuratorID,
		"order_id", order.ID,
		"total", order.Total,
		"warnings", len(check.Warnings),
	)

	return &SubmitResult{Accepted: true, Check: check, Order: order}, nil
}

// EncodeShared serializes a configuration into a URL-safe share token.
func EncodeShared(cfg domain.Configuration) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeShared parses a share token back into a configuration,
// dropping unknown slots and options that are no longer available.
func (s *Service) DecodeShared(ctx context.Context, configuratorID int64, encoded string) (domain.Configuration, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed share token", ErrValidation)
	}

	var raw domain.Configuration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed share token", ErrValidation)
	}

	conf, err := s.Definition(ctx, configuratorID)
	if err != nil {
		return nil, err
	}
	snap, err := catalog.BuildSnapshot(ctx, s.catalog, conf, raw)
	if err != nil {
		return nil, err
	}

	cfg := make(domain.Configuration)
	for i := range conf.Slots {
		slot := &conf.Slots[i]
		productID, ok := raw[slot.ID]
		if !ok || productID <= 0 {
			continue
		}
		if s.isValidOption(slot, productID, snap) {
			cfg[slot.ID] = productID
		}
	}
	return cfg, nil
}

// PreviewRule evaluates a single candidate rule against a
// configuration without loading it into the engine. Lets merchants
// test a rule before saving it.
func (s *Service) PreviewRule(ctx context.Context, configuratorID int64, cfg domain.Configuration, rule *domain.Rule) (*CheckResult, error) {
	if err := s.engine.ValidateRule(rule); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	_, snap, err := s.prepare(ctx, configuratorID, cfg, nil)
	if err != nil {
		return nil, err
	}

	result := s.engine.EvaluateRule(rule, cfg, snap)
	return &CheckResult{
		Valid:    result.Valid,
		Errors:   result.Errors,
		Warnings: result.Warnings,
	}, nil
}

// ReloadRules swaps the engine's rule snapshot from the store. In-flight
// evaluations finish on the old snapshot.
func (s *Service) ReloadRules(ctx context.Context) (int, error) {
	stored, err := s.repo.ListRules(ctx)
	if err != nil {
		return 0, err
	}

	loaded := s.engine.LoadRules(stored)

	if s.bus != nil {
		payload, _ := json.Marshal(map[string]int{"loaded": loaded})
		_ = s.bus.Publish(ctx, domain.TopicRulesReloaded, payload)
	}

	slog.Info("rules reloaded",
		"stored", len(stored),
		"loaded", loaded,
	)

	return loaded, nil
}

// ReloadWarranty swaps the warranty bracket and plan snapshot from the
// store.
func (s *Service) ReloadWarranty(ctx context.Context) error {
	brackets, err := s.repo.ListBrackets(ctx)
	if err != nil {
		return err
	}
	plans, err := s.repo.GetWarrantyPlans(ctx)
	if err != nil {
		return err
	}

	s.warranty.Reload(brackets, plans)

	slog.Info("warranty reloaded",
		"brackets", len(brackets),
		"plans", len(plans.ProductIDs),
	)

	return nil
}

// prepare loads the definition, validates the caller's input against
// it and builds the product snapshot the rest of the pipeline runs on.
func (s *Service) prepare(ctx context.Context, configuratorID int64, cfg domain.Configuration, qty domain.Quantities) (*domain.Configurator, *catalog.Snapshot, error) {
	if configuratorID <= 0 {
		return nil, nil, fmt.Errorf("%w: positive configurator id is required", ErrValidation)
	}

	conf, err := s.Definition(ctx, configuratorID)
	if err != nil {
		return nil, nil, err
	}

	snap, err := catalog.BuildSnapshot(ctx, s.catalog, conf, cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := s.validate(conf, cfg, qty, snap); err != nil {
		return nil, nil, err
	}

	return conf, snap, nil
}

// validate enforces the caller contract: every referenced slot must
// exist, every selected product must be an option of its slot, and
// quantities must respect the slot bounds.
func (s *Service) validate(conf *domain.Configurator, cfg domain.Configuration, qty domain.Quantities, snap *catalog.Snapshot) error {
	for slotID, productID := range cfg {
		slot := conf.Slot(slotID)
		if slot == nil {
			return fmt.Errorf("%w: unknown slot %q", ErrValidation, slotID)
		}
		if productID < 0 {
			return fmt.Errorf("%w: negative product id for slot %q", ErrValidation, slotID)
		}
		if productID == 0 {
			continue
		}
		// Unresolvable products validate fine and count as unselected
		// downstream. Resolvable products must be actual slot options.
		if snap.Product(productID) != nil && !s.isValidOption(slot, productID, snap) {
			return fmt.Errorf("%w: product %d is not an option of slot %q", ErrValidation, productID, slotID)
		}
	}

	for slotID, quantity := range qty {
		slot := conf.Slot(slotID)
		if slot == nil {
			return fmt.Errorf("%w: unknown slot %q", ErrValidation, slotID)
		}
		if quantity < 1 {
			return fmt.Errorf("%w: quantity for slot %q must be at least 1", ErrValidation, slotID)
		}
		if !slot.EnableQuantity && quantity > 1 {
			return fmt.Errorf("%w: slot %q does not support quantities", ErrValidation, slotID)
		}
		if slot.EnableQuantity {
			if slot.MinQuantity > 0 && quantity < slot.MinQuantity {
				return fmt.Errorf("%w: quantity for slot %q is below the minimum of %d", ErrValidation, slotID, slot.MinQuantity)
			}
			if slot.MaxQuantity > 0 && quantity > slot.MaxQuantity {
				return fmt.Errorf("%w: quantity for slot %q exceeds the maximum of %d", ErrValidation, slotID, slot.MaxQuantity)
			}
		}
	}

	return nil
}

// requiredSlots reports an error for every non-optional slot that is
// unselected or holds a product the catalog cannot resolve.
func (s *Service) requiredSlots(conf *domain.Configurator, cfg domain.Configuration, snap *catalog.Snapshot) domain.Result {
	result := domain.Result{Valid: true}
	for i := range conf.Slots {
		slot := &conf.Slots[i]
		if slot.Optional || slot.System {
			continue
		}
		if !cfg.Selected(slot.ID) || snap.Product(cfg[slot.ID]) == nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("A selection is required for %s.", slot.Title))
		}
	}
	return result
}

// isValidOption reports whether the product resolves, is purchasable,
// and is offered by the slot, either directly or through one of the
// slot's categories.
func (s *Service) isValidOption(slot *domain.Slot, productID int64, snap *catalog.Snapshot) bool {
	p := snap.Product(productID)
	if p == nil || !p.Purchasable {
		return false
	}
	for _, id := range slot.ProductIDs {
		if id == productID {
			return true
		}
	}
	for _, catID := range slot.CategoryIDs {
		for _, pc := range p.CategoryIDs {
			if pc == catID {
				return true
			}
		}
	}
	return false
}

// slotOptionIDs resolves the full option list of a slot: direct ids
// first, then category members in id order. Ids the catalog cannot
// resolve and non-purchasable products are excluded.
func (s *Service) slotOptionIDs(slot *domain.Slot, snap *catalog.Snapshot) []int64 {
	seen := make(map[int64]bool, len(slot.ProductIDs))
	ids := make([]int64, 0, len(slot.ProductIDs))
	for _, id := range slot.ProductIDs {
		if id <= 0 || seen[id] {
			continue
		}
		p := snap.Product(id)
		if p == nil || !p.Purchasable {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, p := range snap.InCategories(slot.CategoryIDs) {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		ids = append(ids, p.ID)
	}
	return ids
}

func (s *Service) filterSlot(slot *domain.Slot, cfg domain.Configuration, snap *catalog.Snapshot) *SlotOptions {
	options := s.slotOptionIDs(slot, snap)
	allowed := s.engine.FilterCandidates(slot.ID, options, cfg, snap)

	var warnings map[int64][]string
	for _, id := range allowed {
		w := s.engine.WarningsFor(slot.ID, id, cfg, snap)
		if len(w) == 0 {
			continue
		}
		if warnings == nil {
			warnings = make(map[int64][]string)
		}
		warnings[id] = w
	}

	return &SlotOptions{
		SlotID:            slot.ID,
		AllowedProductIDs: allowed,
		Warnings:          warnings,
	}
}
