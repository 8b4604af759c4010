package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorCode categorizes validation errors. The set is closed: backends and
// UIs switch on these codes to distinguish malformed queries from queries
// that merely reference unknown names (the latter is the metadata service's
// error category, not ours).
type ErrorCode string

const (
	// ErrCodeEmptyLogicalGroup indicates an And/Or with zero operands.
	ErrCodeEmptyLogicalGroup ErrorCode = "EMPTY_LOGICAL_GROUP"

	// ErrCodeOperatorArityMismatch indicates a predicate value whose shape
	// does not match its operator (wrong arity or wrong type class).
	ErrCodeOperatorArityMismatch ErrorCode = "OPERATOR_ARITY_MISMATCH"

	// ErrCodeUnknownOperator indicates an enum member outside its closed
	// set: a comparison operator, frame mode, or frame bound the IR does
	// not define.
	ErrCodeUnknownOperator ErrorCode = "UNKNOWN_OPERATOR"

	// ErrCodeDuplicateSelectionAlias indicates two selections at the same
	// nesting level producing the same output column.
	ErrCodeDuplicateSelectionAlias ErrorCode = "DUPLICATE_SELECTION_ALIAS"

	// ErrCodeMissingAlias indicates an aggregation or window function with
	// no alias. Both produce computed output columns, which are addressable
	// only by alias.
	ErrCodeMissingAlias ErrorCode = "MISSING_ALIAS"

	// ErrCodeUngroupedFieldInAggregateQuery indicates a selected field that
	// is neither grouped nor an aggregation alias in an aggregate query.
	ErrCodeUngroupedFieldInAggregateQuery ErrorCode = "UNGROUPED_FIELD_IN_AGGREGATE_QUERY"

	// ErrCodeAggregationWithoutField indicates an aggregation function other
	// than count with no field.
	ErrCodeAggregationWithoutField ErrorCode = "AGGREGATION_WITHOUT_FIELD"

	// ErrCodeHavingWithoutGrouping indicates a having clause on an envelope
	// with no groupBy and no aggregations.
	ErrCodeHavingWithoutGrouping ErrorCode = "HAVING_WITHOUT_GROUPING"

	// ErrCodeDistinctWithAggregation indicates envelope-level distinct
	// combined with aggregations. Use the per-aggregation distinct flag.
	ErrCodeDistinctWithAggregation ErrorCode = "DISTINCT_WITH_AGGREGATION"

	// ErrCodeRankingFunctionWithField indicates a ranking window function
	// (row_number, rank, dense_rank, percent_rank) carrying a field.
	ErrCodeRankingFunctionWithField ErrorCode = "RANKING_FUNCTION_WITH_FIELD"

	// ErrCodeOffsetFunctionWithoutField indicates an offset/value or
	// aggregate window function with no field.
	ErrCodeOffsetFunctionWithoutField ErrorCode = "OFFSET_FUNCTION_WITHOUT_FIELD"

	// ErrCodeFrameWithoutOrder indicates a window frame on a WindowSpec
	// with no orderBy. A frame without an order is meaningless.
	ErrCodeFrameWithoutOrder ErrorCode = "FRAME_WITHOUT_ORDER"

	// ErrCodeDuplicateJoinAlias indicates an alias reused across sibling joins.
	ErrCodeDuplicateJoinAlias ErrorCode = "DUPLICATE_JOIN_ALIAS"

	// ErrCodeJoinOnMissingTargetField indicates a join condition that never
	// references a field of the joined target (by naming convention).
	ErrCodeJoinOnMissingTargetField ErrorCode = "JOIN_ON_MISSING_TARGET_FIELD"

	// ErrCodeJoinNestingTooDeep indicates subquery nesting beyond the
	// configured maximum depth.
	ErrCodeJoinNestingTooDeep ErrorCode = "JOIN_NESTING_TOO_DEEP"

	// ErrCodeConflictingPaginationModes indicates both offset and cursor
	// pagination supplied on one envelope.
	ErrCodeConflictingPaginationModes ErrorCode = "CONFLICTING_PAGINATION_MODES"

	// ErrCodeNegativeLimit indicates a negative limit or offset.
	ErrCodeNegativeLimit ErrorCode = "NEGATIVE_LIMIT"

	// ErrCodeMissingObject indicates an envelope with no target object name.
	ErrCodeMissingObject ErrorCode = "MISSING_OBJECT"
)

// Path locates a node within an envelope as a sequence of keys and indices,
// e.g. ["joins", "1", "on", "operands", "0"]. UIs use it to highlight the
// offending sub-expression.
type Path []string

// Key returns a new Path with a key segment appended.
// The receiver is never mutated.
func (p Path) Key(k string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, k)
}

// Index returns a new Path with an index segment appended.
func (p Path) Index(i int) Path {
	return p.Key(strconv.Itoa(i))
}

// String renders the path dot-separated, e.g. "joins.1.on.operands.0".
func (p Path) String() string {
	return strings.Join(p, ".")
}

// ValidationError is a structural query error. It carries the path to the
// offending node so callers can point at the exact sub-expression.
//
// Validation is fail-fast: the first ValidationError aborts the walk.
type ValidationError struct {
	Code    ErrorCode `json:"code"`
	Path    Path      `json:"path,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// newError creates a ValidationError at the given path.
func newError(code ErrorCode, path Path, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf extracts the ErrorCode from an error, or "" if it is not a
// ValidationError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsCode returns true if the error is a ValidationError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
