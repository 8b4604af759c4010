package query

import "github.com/karst-db/karst/internal/ir"

// ComparisonOperator is the closed enumeration of predicate operators.
// Each operator constrains the admissible value shape: checkValueShape
// switches exhaustively over this set.
type ComparisonOperator string

const (
	OpEqual          ComparisonOperator = "="
	OpNotEqual       ComparisonOperator = "!="
	OpGreater        ComparisonOperator = ">"
	OpGreaterOrEqual ComparisonOperator = ">="
	OpLess           ComparisonOperator = "<"
	OpLessOrEqual    ComparisonOperator = "<="
	OpStartsWith     ComparisonOperator = "starts_with"
	OpContains       ComparisonOperator = "contains"
	OpNotContains    ComparisonOperator = "not_contains"
	OpBetween        ComparisonOperator = "between"
	OpIn             ComparisonOperator = "in"
	OpNotIn          ComparisonOperator = "not_in"
	OpIsNull         ComparisonOperator = "is_null"
	OpIsNotNull      ComparisonOperator = "is_not_null"
)

// Known reports whether op is a member of the closed enumeration.
func (op ComparisonOperator) Known() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual,
		OpStartsWith, OpContains, OpNotContains,
		OpBetween, OpIn, OpNotIn,
		OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// checkValueShape verifies that a predicate value matches its operator's
// arity and type class:
//   - between: a sequence of exactly two scalar bounds
//   - in / not_in: a non-empty sequence
//   - is_null / is_not_null: no value
//   - starts_with / contains / not_contains: a string
//   - everything else: a single scalar (null requires is_null, never =)
func checkValueShape(op ComparisonOperator, v ir.Value, path Path) *ValidationError {
	switch op {
	case OpIsNull, OpIsNotNull:
		if !isAbsent(v) {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q takes no value", op)
		}
		return nil

	case OpBetween:
		seq, ok := v.(ir.Sequence)
		if !ok {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q requires a two-element sequence", op)
		}
		if len(seq) != 2 {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q requires exactly 2 bounds, got %d", op, len(seq))
		}
		for i, bound := range seq {
			if !isScalar(bound) {
				return newError(ErrCodeOperatorArityMismatch, path.Index(i),
					"operator %q bounds must be scalar", op)
			}
		}
		return nil

	case OpIn, OpNotIn:
		seq, ok := v.(ir.Sequence)
		if !ok {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q requires a sequence value", op)
		}
		if len(seq) == 0 {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q requires a non-empty sequence", op)
		}
		for i, elem := range seq {
			if !isScalar(elem) {
				return newError(ErrCodeOperatorArityMismatch, path.Index(i),
					"operator %q elements must be scalar", op)
			}
		}
		return nil

	case OpStartsWith, OpContains, OpNotContains:
		if _, ok := v.(ir.String); !ok {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q requires a string value", op)
		}
		return nil

	case OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		if isAbsent(v) {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q requires a value (use is_null for null checks)", op)
		}
		if !isScalar(v) {
			return newError(ErrCodeOperatorArityMismatch, path,
				"operator %q requires a scalar value", op)
		}
		return nil

	default:
		return newError(ErrCodeUnknownOperator, path,
			"unknown comparison operator %q", op)
	}
}

// isAbsent reports whether a predicate carries no value.
// Both a nil interface and an explicit Null count as absent.
func isAbsent(v ir.Value) bool {
	if v == nil {
		return true
	}
	_, isNull := v.(ir.Null)
	return isNull
}

// isScalar reports whether v is a single comparable value
// (bool, int, float, or string).
func isScalar(v ir.Value) bool {
	switch v.(type) {
	case ir.Bool, ir.Int, ir.Float, ir.String:
		return true
	}
	return false
}
