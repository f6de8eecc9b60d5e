package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/dancrook1/w2f-config/internal/domain"
)

// Default messages used when a rule carries no message text.
const (
	msgRequirementNotMet = "Compatibility requirement not met."
	msgIncompatible      = "Selected components are incompatible."
	msgMayLimitOptions   = "This selection may limit your options for other components."
	msgMayNotBeCompat    = "These components may not be compatible."
)

// floatTolerance is the comparison tolerance for == and != operators.
const floatTolerance = 0.0001

var numericPattern = regexp.MustCompile(`[\d.]+`)

// evalProductMatch ties an exact product in slot A to an exact product
// in slot B. require: A selected implies B must hold the named product.
// exclude: A and B both holding the named products is forbidden.
func evalProductMatch(r *domain.Rule, cfg domain.Configuration) domain.Result {
	result := domain.OK()

	c := r.Conditions.ProductMatch
	if c == nil || c.ComponentA == "" || c.ProductA == 0 {
		return result
	}
	if cfg[c.ComponentA] != c.ProductA {
		return result
	}
	if c.ComponentB == "" || c.ProductB == 0 {
		return result
	}

	switch r.Action {
	case domain.ActionRequire:
		if cfg[c.ComponentB] != c.ProductB {
			result.Valid = false
			result.Errors = append(result.Errors, messageOr(r, msgRequirementNotMet))
		}
	case domain.ActionExclude:
		if cfg[c.ComponentB] == c.ProductB {
			result.Valid = false
			result.Errors = append(result.Errors, messageOr(r, msgIncompatible))
		}
	}

	return result
}

// evalAttributeMatch triggers when slot A's product has attribute A equal
// to value A, then requires slot B's product to have attribute B equal to
// value B. Attribute resolution falls back to product meta.
func evalAttributeMatch(r *domain.Rule, cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	c := r.Conditions.AttributeMatch
	if c == nil {
		return domain.OK()
	}
	return evalValueMatch(r, cfg, products,
		valueMatch{
			componentA: c.ComponentA, keyA: c.AttributeA, valueA: c.ValueA,
			componentB: c.ComponentB, keyB: c.AttributeB, valueB: c.ValueB,
			read: (*domain.Product).AttributeValue,
		})
}

// evalSpecMatch is the attribute_match shape reading strictly from
// product meta.
func evalSpecMatch(r *domain.Rule, cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	c := r.Conditions.SpecMatch
	if c == nil {
		return domain.OK()
	}
	return evalValueMatch(r, cfg, products,
		valueMatch{
			componentA: c.ComponentA, keyA: c.SpecA, valueA: c.ValueA,
			componentB: c.ComponentB, keyB: c.SpecB, valueB: c.ValueB,
			read: (*domain.Product).MetaValue,
		})
}

type valueMatch struct {
	componentA, keyA, valueA string
	componentB, keyB, valueB string
	read                     func(*domain.Product, string) string
}

func evalValueMatch(r *domain.Rule, cfg domain.Configuration, products domain.ProductResolver, m valueMatch) domain.Result {
	result := domain.OK()

	if m.componentA == "" || m.keyA == "" || m.valueA == "" {
		return result
	}
	if !cfg.Selected(m.componentA) {
		return result
	}
	productA := products.Product(cfg[m.componentA])
	if productA == nil {
		return result
	}
	if m.read(productA, m.keyA) != m.valueA {
		return result // trigger not met
	}

	if r.Action != domain.ActionRequire || m.componentB == "" || m.keyB == "" || m.valueB == "" {
		return result
	}

	fail := func() domain.Result {
		result.Valid = false
		result.Errors = append(result.Errors, messageOr(r, msgRequirementNotMet))
		return result
	}

	if !cfg.Selected(m.componentB) {
		return fail()
	}
	productB := products.Product(cfg[m.componentB])
	if productB == nil {
		return fail()
	}
	if m.read(productB, m.keyB) != m.valueB {
		return fail()
	}

	return result
}

// evalCategoryExclude triggers when slot A's product is in category A.
// If slot B has no selection yet it emits a generic advisory; if slot B's
// product is in category B it emits the rule message. Always warnings,
// never errors, regardless of the stored action: both sides are
// independent user selections and either might change.
func evalCategoryExclude(r *domain.Rule, cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	result := domain.OK()

	c := r.Conditions.CategoryExclude
	if c == nil || c.ComponentA == "" || c.CategoryA == 0 || c.ComponentB == "" || c.CategoryB == 0 {
		return result
	}
	if !cfg.Selected(c.ComponentA) {
		return result
	}
	productA := products.Product(cfg[c.ComponentA])
	if productA == nil || !productA.InCategory(c.CategoryA) {
		return result
	}

	if !cfg.Selected(c.ComponentB) {
		result.Warnings = append(result.Warnings, messageOr(r, msgMayLimitOptions))
		return result
	}
	productB := products.Product(cfg[c.ComponentB])
	if productB == nil {
		return result
	}
	if productB.InCategory(c.CategoryB) {
		result.Warnings = append(result.Warnings, messageOr(r, msgMayNotBeCompat))
	}

	return result
}

// evalNumericAttribute compares numeric attribute values across two
// selected slots. Non-numeric or missing values make the rule silently
// not apply. Like category_exclude, a met comparison is advisory only.
func evalNumericAttribute(r *domain.Rule, cfg domain.Configuration, products domain.ProductResolver) domain.Result {
	result := domain.OK()

	c := r.Conditions.NumericAttribute
	if c == nil || c.ComponentA == "" || c.AttributeA == "" || c.ComponentB == "" || c.AttributeB == "" {
		return result
	}
	if !cfg.Selected(c.ComponentA) || !cfg.Selected(c.ComponentB) {
		return result
	}
	productA := products.Product(cfg[c.ComponentA])
	productB := products.Product(cfg[c.ComponentB])
	if productA == nil || productB == nil {
		return result
	}

	valueA, okA := numericAttributeValue(productA, c.AttributeA)
	valueB, okB := numericAttributeValue(productB, c.AttributeB)
	if !okA || !okB {
		return result
	}

	if compareNumeric(valueA, c.Operator, valueB) {
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%s (%g) is %s %s (%g). This configuration is incompatible.",
				c.AttributeA, valueA, c.Operator, c.AttributeB, valueB)
		}
		result.Warnings = append(result.Warnings, msg)
	}

	return result
}

// numericAttributeValue resolves an attribute to a number, trying the
// attribute map first and product meta second.
func numericAttributeValue(p *domain.Product, name string) (float64, bool) {
	if v, ok := p.Attributes[name]; ok {
		if n, ok := extractNumeric(v); ok {
			return n, true
		}
	}
	if v := p.Meta[name]; v != "" {
		if n, ok := extractNumeric(v); ok {
			return n, true
		}
	}
	return 0, false
}

// extractNumeric pulls the first decimal number out of a string,
// e.g. "850W" yields 850.
func extractNumeric(value string) (float64, bool) {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return n, true
	}
	match := numericPattern.FindString(value)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func compareNumeric(a float64, operator string, b float64) bool {
	switch operator {
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case "<":
		return a < b
	case "==":
		return math.Abs(a-b) < floatTolerance
	case "!=":
		return math.Abs(a-b) >= floatTolerance
	default:
		return false
	}
}

func messageOr(r *domain.Rule, fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}
