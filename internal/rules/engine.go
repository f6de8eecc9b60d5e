// Package rules provides the compatibility rule evaluation engine.
package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/dancrook1/w2f-config/internal/domain"
)

// Engine evaluates compatibility rules against candidate configurations.
// It holds an immutable rule snapshot that is swapped atomically on
// reload; evaluation itself is pure over the snapshot and a product
// resolver, so concurrent evaluations never interfere.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules []*compiledRule
}

// compiledRule pairs a rule with its pre-compiled CEL program. Program
// is nil for all rule types except expression.
type compiledRule struct {
	rule    *domain.Rule
	program cel.Program
}

// NewEngine creates a rule engine with an empty rule set.
func NewEngine() (*Engine, error) {
	// CEL environment for expression rules: the current selection plus
	// per-slot attribute and meta maps.
	env, err := cel.NewEnv(
		cel.Variable("selection", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.MapType(cel.StringType, cel.StringType))),
		cel.Variable("meta", cel.MapType(cel.StringType, cel.MapType(cel.StringType, cel.StringType))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// ValidateRule checks that a rule can be loaded, without mutating the
// engine. For expression rules this compiles the CEL program.
func (e *Engine) ValidateRule(rule *domain.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	_, err := e.compile(rule)
	return err
}

// LoadRules replaces the current rule set with the given rules,
// preserving store order. Inactive rules are kept (and skipped at
// evaluation time); expression rules that fail to compile are logged
// and dropped rather than failing the load. Returns the number of
// rules loaded.
func (e *Engine) LoadRules(rules []*domain.Rule) int {
	loaded := make([]*compiledRule, 0, len(rules))
	for _, rule := range rules {
		compiled, err := e.compile(rule)
		if err != nil {
			slog.Warn("skipping rule",
				"rule_id", rule.ID,
				"type", rule.Type,
				"error", err,
			)
			continue
		}
		loaded = append(loaded, compiled)
	}

	e.mu.Lock()
	e.rules = loaded
	e.mu.Unlock()

	return len(loaded)
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// LoadedRules returns the currently loaded rules in store order.
func (e *Engine) LoadedRules() []*domain.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.Rule, 0, len(e.rules))
	for _, compiled := range e.rules {
		rules = append(rules, compiled.rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = nil
	return nil
}

// Evaluate runs every active rule against the configuration in store
// order and merges the per-rule results: errors and warnings
// concatenate, validity ANDs. Malformed rules contribute nothing.
func (e *Engine) Evaluate(cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	result := domain.OK()
	if len(cfg) == 0 || len(rules) == 0 {
		return result
	}

	for _, compiled := range rules {
		if !compiled.rule.Active {
			continue
		}
		result.Merge(e.evaluateRule(compiled, cfg, products))
	}

	return result
}

// EvaluateRule runs a single rule against a configuration. Used by
// Evaluate and by the admin rule preview.
func (e *Engine) EvaluateRule(rule *domain.Rule, cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	compiled, err := e.compile(rule)
	if err != nil {
		return domain.OK()
	}
	return e.evaluateRule(compiled, cfg, products)
}

func (e *Engine) evaluateRule(compiled *compiledRule, cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	rule := compiled.rule
	switch rule.Type {
	case domain.RuleProductMatch:
		return evalProductMatch(rule, cfg)
	case domain.RuleAttributeMatch:
		return evalAttributeMatch(rule, cfg, products)
	case domain.RuleSpecMatch:
		return evalSpecMatch(rule, cfg, products)
	case domain.RuleCategoryExclude:
		return evalCategoryExclude(rule, cfg, products)
	case domain.RuleNumericAttribute:
		return evalNumericAttribute(rule, cfg, products)
	case domain.RuleExpression:
		return e.evalExpression(compiled, cfg, products)
	default:
		return domain.OK()
	}
}

// evalExpression evaluates a compiled CEL expression rule. A true
// outcome fires the rule: warn actions emit a warning, everything else
// an error. Evaluation failures make the rule silently not apply.
func (e *Engine) evalExpression(compiled *compiledRule, cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	result := domain.OK()
	if compiled.program == nil {
		return result
	}

	selection := make(map[string]int64, len(cfg))
	attributes := make(map[string]map[string]string, len(cfg))
	meta := make(map[string]map[string]string, len(cfg))
	for slotID, productID := range cfg {
		if productID <= 0 {
			continue
		}
		selection[slotID] = productID
		if p := products.Product(productID); p != nil {
			attributes[slotID] = p.Attributes
			meta[slotID] = p.Meta
		}
	}

	out, _, err := compiled.program.Eval(map[string]any{
		"selection":  selection,
		"attributes": attributes,
		"meta":       meta,
	})
	if err != nil {
		return result
	}

	fired, ok := out.(types.Bool)
	if !ok || !bool(fired) {
		return result
	}

	msg := messageOr(compiled.rule, msgIncompatible)
	if compiled.rule.Action == domain.ActionWarn {
		result.Warnings = append(result.Warnings, msg)
	} else {
		result.Valid = false
		result.Errors = append(result.Errors, msg)
	}
	return result
}

// FilterCandidates returns the subset of option products that keep the
// configuration valid when substituted into the slot. Warnings do not
// exclude a candidate.
func (e *Engine) FilterCandidates(slotID string, optionIDs []int64, cfg domain.Configuration, products domain.ProductResolver) []int64 {
	if e.RulesCount() == 0 {
		return optionIDs
	}

	kept := make([]int64, 0, len(optionIDs))
	for _, productID := range optionIDs {
		test := cfg.With(slotID, productID)
		if e.Evaluate(test, products).Valid {
			kept = append(kept, productID)
		}
	}
	return kept
}

// WarningsFor returns the advisory messages a product would produce in
// the slot: category_exclude and numeric_attribute warnings checked
// per rule (these fire against partial configurations), plus warnings
// from a full evaluation, de-duplicated by message text.
func (e *Engine) WarningsFor(slotID string, productID int64, cfg domain.Configuration, products domain.ProductResolver) []string {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	test := cfg.With(slotID, productID)

	var warnings []string
	seen := make(map[string]bool)
	add := func(msgs []string) {
		for _, msg := range msgs {
			if !seen[msg] {
				seen[msg] = true
				warnings = append(warnings, msg)
			}
		}
	}

	for _, compiled := range rules {
		rule := compiled.rule
		if !rule.Active {
			continue
		}
		switch rule.Type {
		case domain.RuleCategoryExclude:
			add(evalCategoryExclude(rule, test, products).Warnings)
		case domain.RuleNumericAttribute:
			add(evalNumericAttribute(rule, test, products).Warnings)
		}
	}

	add(e.Evaluate(test, products).Warnings)

	return warnings
}

func (e *Engine) compile(rule *domain.Rule) (*compiledRule, error) {
	compiled := &compiledRule{rule: rule}
	if rule.Type != domain.RuleExpression {
		return compiled, nil
	}

	cond := rule.Conditions.Expression
	if cond == nil || cond.Expression == "" {
		return nil, fmt.Errorf("rule %s: expression is required", rule.ID)
	}

	ast, issues := e.env.Compile(cond.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}
	compiled.program = program

	return compiled, nil
}
