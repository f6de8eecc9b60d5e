package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// RuleType identifies a compatibility rule evaluator.
type RuleType string

const (
	RuleProductMatch     RuleType = "product_match"
	RuleAttributeMatch   RuleType = "attribute_match"
	RuleSpecMatch        RuleType = "spec_match"
	RuleCategoryExclude  RuleType = "category_exclude"
	RuleNumericAttribute RuleType = "numeric_attribute"
	RuleExpression       RuleType = "expression"
)

// RuleAction determines how a triggered rule affects the result.
// category_exclude and numeric_attribute rules are advisory at the
// whole-configuration level and emit warnings regardless of action.
type RuleAction string

const (
	ActionRequire RuleAction = "require"
	ActionExclude RuleAction = "exclude"
	ActionWarn    RuleAction = "warn"
)

// Rule is a declarative compatibility constraint. Conditions are decoded
// into the typed variant for the rule's type at the store boundary; the
// engine never re-parses condition strings.
type Rule struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       RuleType   `json:"type"`
	Action     RuleAction `json:"action"`
	Active     bool       `json:"isActive"`
	Message    string     `json:"message,omitempty"`
	Position   int        `json:"position"`
	Conditions Conditions `json:"conditions"`
}

// Conditions is the decoded, per-type condition payload. Exactly one
// variant is set for a well-formed rule; a rule whose variant is nil
// never applies.
type Conditions struct {
	ProductMatch     *ProductMatchConditions     `json:"productMatch,omitempty"`
	AttributeMatch   *AttributeMatchConditions   `json:"attributeMatch,omitempty"`
	SpecMatch        *SpecMatchConditions        `json:"specMatch,omitempty"`
	CategoryExclude  *CategoryExcludeConditions  `json:"categoryExclude,omitempty"`
	NumericAttribute *NumericAttributeConditions `json:"numericAttribute,omitempty"`
	Expression       *ExpressionConditions       `json:"expression,omitempty"`
}

// ProductMatchConditions ties an exact product in one slot to an exact
// product in another.
type ProductMatchConditions struct {
	ComponentA string `json:"componentA"`
	ProductA   int64  `json:"productA"`
	ComponentB string `json:"componentB"`
	ProductB   int64  `json:"productB"`
}

// AttributeMatchConditions compares resolved attribute values (attribute
// map with meta fallback) between two slots.
type AttributeMatchConditions struct {
	ComponentA string `json:"componentA"`
	AttributeA string `json:"attributeA"`
	ValueA     string `json:"valueA"`
	ComponentB string `json:"componentB"`
	AttributeB string `json:"attributeB"`
	ValueB     string `json:"valueB"`
}

// SpecMatchConditions is the attribute_match shape reading strictly
// from product meta.
type SpecMatchConditions struct {
	ComponentA string `json:"componentA"`
	SpecA      string `json:"specA"`
	ValueA     string `json:"valueA"`
	ComponentB string `json:"componentB"`
	SpecB      string `json:"specB"`
	ValueB     string `json:"valueB"`
}

// CategoryExcludeConditions flags category combinations across two slots.
type CategoryExcludeConditions struct {
	ComponentA string `json:"componentA"`
	CategoryA  int64  `json:"categoryA"`
	ComponentB string `json:"componentB"`
	CategoryB  int64  `json:"categoryB"`
}

// NumericAttributeConditions compares numeric attribute values across
// two slots with the given operator (>, >=, <, <=, ==, !=).
type NumericAttributeConditions struct {
	ComponentA string `json:"componentA"`
	AttributeA string `json:"attributeA"`
	ComponentB string `json:"componentB"`
	AttributeB string `json:"attributeB"`
	Operator   string `json:"operator"`
}

// ExpressionConditions holds a CEL expression over the selection and
// product attribute maps. Compiled once at engine load.
type ExpressionConditions struct {
	Expression string `json:"expression"`
}

// DecodeConditions turns the stored stringly-typed condition map into the
// typed variant for the rule type. Legacy "productId|slotId" component
// keys are normalized by stripping everything up to and including the
// pipe. Missing condition keys yield zero-valued fields, never an error;
// the evaluators treat incomplete variants as "rule does not apply".
func DecodeConditions(ruleType RuleType, raw map[string]string) (Conditions, error) {
	var c Conditions
	if len(raw) == 0 {
		return c, nil
	}

	get := func(key string) string { return raw[key] }
	getInt := func(key string) int64 {
		n, _ := strconv.ParseInt(strings.TrimSpace(raw[key]), 10, 64)
		return n
	}

	switch ruleType {
	case RuleProductMatch:
		c.ProductMatch = &ProductMatchConditions{
			ComponentA: get("component_a"),
			ProductA:   getInt("product_a"),
			ComponentB: get("component_b"),
			ProductB:   getInt("product_b"),
		}
	case RuleAttributeMatch:
		c.AttributeMatch = &AttributeMatchConditions{
			ComponentA: get("component_a"),
			AttributeA: get("attribute_a"),
			ValueA:     get("value_a"),
			ComponentB: get("component_b"),
			AttributeB: get("attribute_b"),
			ValueB:     get("value_b"),
		}
	case RuleSpecMatch:
		c.SpecMatch = &SpecMatchConditions{
			ComponentA: get("component_a"),
			SpecA:      get("spec_a"),
			ValueA:     get("value_a"),
			ComponentB: get("component_b"),
			SpecB:      get("spec_b"),
			ValueB:     get("value_b"),
		}
	case RuleCategoryExclude:
		c.CategoryExclude = &CategoryExcludeConditions{
			ComponentA: NormalizeComponentKey(get("component_a")),
			CategoryA:  getInt("category_a"),
			ComponentB: NormalizeComponentKey(get("component_b")),
			CategoryB:  getInt("category_b"),
		}
	case RuleNumericAttribute:
		op := get("operator")
		if op == "" {
			op = ">"
		}
		c.NumericAttribute = &NumericAttributeConditions{
			ComponentA: NormalizeComponentKey(get("component_a")),
			AttributeA: get("attribute_a"),
			ComponentB: NormalizeComponentKey(get("component_b")),
			AttributeB: get("attribute_b"),
			Operator:   op,
		}
	case RuleExpression:
		if expr := get("expression"); expr != "" {
			c.Expression = &ExpressionConditions{Expression: expr}
		}
	default:
		return c, fmt.Errorf("unknown rule type %q", ruleType)
	}

	return c, nil
}

// EncodeConditions is the inverse of DecodeConditions, used when
// persisting a rule back to its stored map form.
func EncodeConditions(r *Rule) map[string]string {
	out := make(map[string]string)
	switch {
	case r.Conditions.ProductMatch != nil:
		pm := r.Conditions.ProductMatch
		out["component_a"] = pm.ComponentA
		out["product_a"] = strconv.FormatInt(pm.ProductA, 10)
		out["component_b"] = pm.ComponentB
		out["product_b"] = strconv.FormatInt(pm.ProductB, 10)
	case r.Conditions.AttributeMatch != nil:
		am := r.Conditions.AttributeMatch
		out["component_a"] = am.ComponentA
		out["attribute_a"] = am.AttributeA
		out["value_a"] = am.ValueA
		out["component_b"] = am.ComponentB
		out["attribute_b"] = am.AttributeB
		out["value_b"] = am.ValueB
	case r.Conditions.SpecMatch != nil:
		sm := r.Conditions.SpecMatch
		out["component_a"] = sm.ComponentA
		out["spec_a"] = sm.SpecA
		out["value_a"] = sm.ValueA
		out["component_b"] = sm.ComponentB
		out["spec_b"] = sm.SpecB
		out["value_b"] = sm.ValueB
	case r.Conditions.CategoryExclude != nil:
		ce := r.Conditions.CategoryExclude
		out["component_a"] = ce.ComponentA
		out["category_a"] = strconv.FormatInt(ce.CategoryA, 10)
		out["component_b"] = ce.ComponentB
		out["category_b"] = strconv.FormatInt(ce.CategoryB, 10)
	case r.Conditions.NumericAttribute != nil:
		na := r.Conditions.NumericAttribute
		out["component_a"] = na.ComponentA
		out["attribute_a"] = na.AttributeA
		out["component_b"] = na.ComponentB
		out["attribute_b"] = na.AttributeB
		out["operator"] = na.Operator
	case r.Conditions.Expression != nil:
		out["expression"] = r.Conditions.Expression.Expression
	}
	return out
}

// NormalizeComponentKey strips the legacy "productId|slotId" prefix from
// a component key, returning the bare slot id.
func NormalizeComponentKey(key string) string {
	if i := strings.Index(key, "|"); i >= 0 {
		if rest := key[i+1:]; rest != "" {
			return rest
		}
	}
	return key
}

// Result is the uniform output of evaluating one or many rules.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK returns a passing result with no messages.
func OK() Result {
	return Result{Valid: true}
}

// Merge folds another result in: errors and warnings concatenate,
// validity ANDs.
func (r *Result) Merge(other Result) {
	if !other.Valid {
		r.Valid = false
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}
