// Package evaluator decides whether a single rule matches a record. It does
// no I/O and never panics or errors: malformed rules simply do not match.
package evaluator

import (
	"strings"

	"github.com/smallbiznis/territorial/internal/record"
	"github.com/smallbiznis/territorial/internal/rule/domain"
)

// Evaluate applies one rule to rec.
func Evaluate(r domain.Rule, rec record.Record) bool {
	if !r.IsActive || rec == nil {
		return false
	}
	if !r.Operator.Valid() {
		return false
	}

	var operands []any
	if !r.Operator.Unary() {
		decoded, err := r.Operands()
		if err != nil || !r.Operator.AcceptsOperands(len(decoded)) {
			return false
		}
		operands = decoded
	}

	v, present := rec.FieldValue(strings.TrimSpace(r.FieldName))
	if !present || v == nil {
		return missing(r.Operator)
	}
	return apply(r.Operator, v, operands)
}

// EvaluateAll is true when rules is non-empty and every rule matches.
func EvaluateAll(rules []domain.Rule, rec record.Record) bool {
	if len(rules) == 0 {
		return false
	}
	for _, r := range rules {
		if !Evaluate(r, rec) {
			return false
		}
	}
	return true
}

// missing handles an absent or null field value. Negative operators treat
// a missing value as "not equal".
func missing(op domain.Operator) bool {
	switch op {
	case domain.OpIsNull, domain.OpNotEquals, domain.OpNotIn:
		return true
	default:
		return false
	}
}

func apply(op domain.Operator, v any, operands []any) bool {
	switch op {
	case domain.OpIsNull:
		return false
	case domain.OpIsNotNull:
		return true
	case domain.OpEquals:
		return looseEqual(v, operands[0])
	case domain.OpNotEquals:
		return !looseEqual(v, operands[0])
	case domain.OpGreater, domain.OpLess:
		c, ok := compareNumbers(v, operands[0])
		if !ok {
			return false
		}
		if op == domain.OpGreater {
			return c > 0
		}
		return c < 0
	case domain.OpBetween:
		low, ok := compareNumbers(v, operands[0])
		if !ok {
			return false
		}
		high, ok := compareNumbers(v, operands[1])
		if !ok {
			return false
		}
		return low >= 0 && high <= 0
	case domain.OpIn:
		return member(v, operands)
	case domain.OpNotIn:
		return !member(v, operands)
	case domain.OpContains, domain.OpStartsWith, domain.OpEndsWith:
		text, ok := toText(v)
		if !ok {
			return false
		}
		needle, ok := toText(operands[0])
		if !ok {
			return false
		}
		switch op {
		case domain.OpContains:
			return strings.Contains(text, needle)
		case domain.OpStartsWith:
			return strings.HasPrefix(text, needle)
		default:
			return strings.HasSuffix(text, needle)
		}
	}
	return false
}

func member(v any, operands []any) bool {
	for _, candidate := range operands {
		if looseEqual(v, candidate) {
			return true
		}
	}
	return false
}
