package query

import "github.com/karst-db/karst/internal/ir"

// FilterExpression represents a boolean expression over an object's fields.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Expression types:
//   - Predicate: one field/operator/value comparison (the leaf)
//   - And, Or: explicit composition of one or more sub-expressions
//   - Not: negation of exactly one sub-expression
//
// A bare Predicate is a valid whole expression; there is no implicit AND of
// top-level predicates. Not wraps a single expression, never a list - how a
// negated group expands (de Morgan or native NOT) is the executor's call,
// not the IR's.
type FilterExpression interface {
	filterExpression() // Marker method - seals interface to this package
}

// Predicate is a single field/operator/value comparison, e.g. amount > 1000.
//
// Value is nil for is_null / is_not_null and an ir.Sequence for between,
// in, and not_in. ValidateFilter enforces the operator's value shape.
type Predicate struct {
	Field    string
	Operator ComparisonOperator
	Value    ir.Value
}

func (Predicate) filterExpression() {}

// And is the conjunction of one or more sub-expressions.
// An And with zero operands is ill-formed: construct with NewAnd, which
// rejects the empty case instead of silently treating it as identity.
type And struct {
	Operands []FilterExpression
}

func (And) filterExpression() {}

// Or is the disjunction of one or more sub-expressions.
// Same construction rule as And.
type Or struct {
	Operands []FilterExpression
}

func (Or) filterExpression() {}

// Not negates exactly one sub-expression.
type Not struct {
	Operand FilterExpression
}

func (Not) filterExpression() {}

// NewAnd constructs a conjunction. Zero operands fail immediately with
// EMPTY_LOGICAL_GROUP; a single operand is valid and semantically equivalent
// to that operand alone (normalization collapses it).
func NewAnd(operands ...FilterExpression) (And, error) {
	if len(operands) == 0 {
		return And{}, newError(ErrCodeEmptyLogicalGroup, nil, "and requires at least one operand")
	}
	return And{Operands: operands}, nil
}

// NewOr constructs a disjunction. Zero operands fail immediately with
// EMPTY_LOGICAL_GROUP.
func NewOr(operands ...FilterExpression) (Or, error) {
	if len(operands) == 0 {
		return Or{}, newError(ErrCodeEmptyLogicalGroup, nil, "or requires at least one operand")
	}
	return Or{Operands: operands}, nil
}

// ValidateFilter checks, recursively, that every predicate's value matches
// its operator's arity and type class and that every And/Or has at least one
// operand. A nil expression is valid (no filter).
//
// ValidateFilter is a pure function; it never mutates the tree.
func ValidateFilter(expr FilterExpression) error {
	if err := validateFilter(expr, nil); err != nil {
		return err
	}
	return nil
}

// validateFilter is the recursive walker behind ValidateFilter, threading
// the node path for error reporting. Structs and pointers to structs are
// both accepted, matching how callers build trees.
func validateFilter(expr FilterExpression, path Path) *ValidationError {
	switch e := expr.(type) {
	case nil:
		return nil
	case Predicate:
		return validatePredicate(e, path)
	case *Predicate:
		return validatePredicate(*e, path)
	case And:
		return validateLogicalGroup("and", e.Operands, path)
	case *And:
		return validateLogicalGroup("and", e.Operands, path)
	case Or:
		return validateLogicalGroup("or", e.Operands, path)
	case *Or:
		return validateLogicalGroup("or", e.Operands, path)
	case Not:
		return validateNot(e, path)
	case *Not:
		return validateNot(*e, path)
	default:
		return newError(ErrCodeUnknownOperator, path, "unknown filter expression type: %T", expr)
	}
}

func validatePredicate(p Predicate, path Path) *ValidationError {
	if !p.Operator.Known() {
		return newError(ErrCodeUnknownOperator, path, "unknown comparison operator %q", p.Operator)
	}
	return checkValueShape(p.Operator, p.Value, path.Key("value"))
}

func validateLogicalGroup(kind string, operands []FilterExpression, path Path) *ValidationError {
	if len(operands) == 0 {
		return newError(ErrCodeEmptyLogicalGroup, path, "%s requires at least one operand", kind)
	}
	for i, operand := range operands {
		if err := validateFilter(operand, path.Key("operands").Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func validateNot(n Not, path Path) *ValidationError {
	if n.Operand == nil {
		return newError(ErrCodeEmptyLogicalGroup, path, "not requires an operand")
	}
	return validateFilter(n.Operand, path.Key("operand"))
}

// NormalizeFilter produces a canonical form of the expression: And/Or nodes
// with a single operand collapse to that operand, recursively. The input is
// never mutated; validity is preserved (a normalized tree validates exactly
// when the original does).
func NormalizeFilter(expr FilterExpression) FilterExpression {
	switch e := expr.(type) {
	case nil:
		return nil
	case Predicate:
		return e
	case *Predicate:
		return *e
	case And:
		return normalizeGroup(e.Operands, false)
	case *And:
		return normalizeGroup(e.Operands, false)
	case Or:
		return normalizeGroup(e.Operands, true)
	case *Or:
		return normalizeGroup(e.Operands, true)
	case Not:
		return Not{Operand: NormalizeFilter(e.Operand)}
	case *Not:
		return Not{Operand: NormalizeFilter(e.Operand)}
	default:
		return expr
	}
}

func normalizeGroup(operands []FilterExpression, isOr bool) FilterExpression {
	normalized := make([]FilterExpression, len(operands))
	for i, operand := range operands {
		normalized[i] = NormalizeFilter(operand)
	}
	if len(normalized) == 1 {
		return normalized[0]
	}
	if isOr {
		return Or{Operands: normalized}
	}
	return And{Operands: normalized}
}

// filterReferencesPrefix reports whether any predicate in the expression
// references a field under the given qualifier, e.g. prefix "orders" matches
// field "orders.customer_id". Used for the join-condition invariant, which
// is syntactic by design - schema resolution belongs to the metadata service.
func filterReferencesPrefix(expr FilterExpression, prefix string) bool {
	qualified := prefix + "."
	found := false
	walkFilterFields(expr, func(field string) {
		if len(field) > len(qualified) && field[:len(qualified)] == qualified {
			found = true
		}
	})
	return found
}

// walkFilterFields invokes fn for every predicate field in the expression.
func walkFilterFields(expr FilterExpression, fn func(field string)) {
	switch e := expr.(type) {
	case Predicate:
		fn(e.Field)
	case *Predicate:
		fn(e.Field)
	case And:
		for _, operand := range e.Operands {
			walkFilterFields(operand, fn)
		}
	case *And:
		for _, operand := range e.Operands {
			walkFilterFields(operand, fn)
		}
	case Or:
		for _, operand := range e.Operands {
			walkFilterFields(operand, fn)
		}
	case *Or:
		for _, operand := range e.Operands {
			walkFilterFields(operand, fn)
		}
	case Not:
		walkFilterFields(e.Operand, fn)
	case *Not:
		walkFilterFields(e.Operand, fn)
	}
}
