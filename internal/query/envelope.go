package query

import "github.com/karst-db/karst/internal/ir"

// SortDirection orders a sort key.
type SortDirection string

const (
	// DirectionAsc is the default; normalization substitutes it for an
	// omitted direction exactly once, so consumers never see "".
	DirectionAsc  SortDirection = "asc"
	DirectionDesc SortDirection = "desc"
)

// SortSpec is a field/direction pair, used by envelope ordering and by
// window ORDER BY.
type SortSpec struct {
	Field     string
	Direction SortDirection
}

// OffsetPagination pages by numeric offset. Limit and Offset are pointers
// so that an explicit 0 stays distinct from omission: limit 0 means
// "return zero rows" (existence/count probes), omitted means unbounded.
type OffsetPagination struct {
	Limit  *int64
	Offset *int64
}

// CursorPagination pages by an opaque position marker, for stable iteration
// over changing data sets. The cursor's keys are backend-defined; the IR
// carries them untouched.
type CursorPagination struct {
	Cursor ir.Map
	Limit  *int64
}

// Envelope is the aggregate root of the query IR: a target object bound to
// filtering, selection, joins, grouping, windowing, sorting, and pagination.
//
// An Envelope has two states: unvalidated (as constructed or deserialized)
// and canonical (the CanonicalQuery produced by Validate). There is no
// partially-valid state.
//
// At most one of Offset and Cursor may be set; both is a construction error
// surfaced by Validate as CONFLICTING_PAGINATION_MODES, never a silent
// override. Neither set means unbounded, left to the executor to cap.
//
// Every node is a value owned by its parent; nothing is shared or mutated
// after construction, so independent envelopes validate concurrently with
// zero coordination.
type Envelope struct {
	Object          string
	Fields          []FieldSelection
	Where           FilterExpression
	Joins           []JoinSpec
	GroupBy         []string
	Having          FilterExpression
	OrderBy         []SortSpec
	WindowFunctions []WindowFunctionSpec
	Aggregations    []AggregationSpec
	Distinct        bool
	Offset          *OffsetPagination
	Cursor          *CursorPagination
}

// Limits bounds the validator's recursion. The only unbounded growth vector
// in the IR is subquery nesting, so that is the only knob.
type Limits struct {
	// MaxJoinDepth caps subquery nesting depth. A chain of N nested
	// subqueries is accepted while N <= MaxJoinDepth.
	MaxJoinDepth int
}

// DefaultMaxJoinDepth is the subquery nesting cap applied when a Limits
// value does not set one.
const DefaultMaxJoinDepth = 8

// DefaultLimits returns the default validation limits.
func DefaultLimits() Limits {
	return Limits{MaxJoinDepth: DefaultMaxJoinDepth}
}

func (l Limits) withDefaults() Limits {
	if l.MaxJoinDepth <= 0 {
		l.MaxJoinDepth = DefaultMaxJoinDepth
	}
	return l
}
