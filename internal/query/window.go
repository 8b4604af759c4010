package query

// WindowFunc is the closed enumeration of window functions: ranking
// functions, offset/value functions, and aggregates applied as windows.
type WindowFunc string

const (
	WinRowNumber   WindowFunc = "row_number"
	WinRank        WindowFunc = "rank"
	WinDenseRank   WindowFunc = "dense_rank"
	WinPercentRank WindowFunc = "percent_rank"
	WinLag         WindowFunc = "lag"
	WinLead        WindowFunc = "lead"
	WinFirstValue  WindowFunc = "first_value"
	WinLastValue   WindowFunc = "last_value"
	WinSum         WindowFunc = "sum"
	WinAvg         WindowFunc = "avg"
	WinCount       WindowFunc = "count"
	WinMin         WindowFunc = "min"
	WinMax         WindowFunc = "max"
)

// Known reports whether fn is a member of the closed enumeration.
func (fn WindowFunc) Known() bool {
	switch fn {
	case WinRowNumber, WinRank, WinDenseRank, WinPercentRank,
		WinLag, WinLead, WinFirstValue, WinLastValue,
		WinSum, WinAvg, WinCount, WinMin, WinMax:
		return true
	}
	return false
}

// ranking reports whether fn is a pure ranking function, which must not
// carry a field.
func (fn WindowFunc) ranking() bool {
	switch fn {
	case WinRowNumber, WinRank, WinDenseRank, WinPercentRank:
		return true
	}
	return false
}

// FrameMode selects how frame bounds are interpreted.
type FrameMode string

const (
	FrameRows  FrameMode = "rows"
	FrameRange FrameMode = "range"
)

// FrameBoundKind is the closed set of frame bound anchors.
type FrameBoundKind string

const (
	BoundUnboundedPreceding FrameBoundKind = "unbounded_preceding"
	BoundPreceding          FrameBoundKind = "preceding"
	BoundCurrentRow         FrameBoundKind = "current_row"
	BoundFollowing          FrameBoundKind = "following"
	BoundUnboundedFollowing FrameBoundKind = "unbounded_following"
)

// FrameBound is one end of a window frame. Offset is meaningful only for
// preceding/following kinds.
type FrameBound struct {
	Kind   FrameBoundKind
	Offset int64
}

// WindowFrame bounds the row set a windowed computation sees,
// e.g. ROWS BETWEEN 2 PRECEDING AND CURRENT ROW.
type WindowFrame struct {
	Mode  FrameMode
	Start FrameBound
	End   FrameBound
}

// WindowSpec is the OVER clause: partitioning, ordering, and an optional
// frame. OrderBy is required whenever Frame is present.
type WindowSpec struct {
	PartitionBy []string
	OrderBy     []SortSpec
	Frame       *WindowFrame
}

// WindowFunctionSpec binds a window function to a WindowSpec under an alias.
// The alias is required; it names the computed output column.
//
// Window functions coexist with groupBy/aggregations on one envelope; the IR
// preserves both lists independently and leaves their evaluation order to
// the executor.
type WindowFunctionSpec struct {
	Function WindowFunc
	Field    string
	Alias    string
	Over     WindowSpec
}

// CheckWindowConsistency enforces the field rules of a window function and
// the frame/order dependency of its WindowSpec:
//   - ranking functions must not carry a field (RANKING_FUNCTION_WITH_FIELD)
//   - offset/value and aggregate functions must carry one (OFFSET_FUNCTION_WITHOUT_FIELD)
//   - a frame requires an orderBy (FRAME_WITHOUT_ORDER)
func CheckWindowConsistency(fn WindowFunctionSpec) error {
	if err := checkWindowConsistency(fn, nil); err != nil {
		return err
	}
	return nil
}

func checkWindowConsistency(fn WindowFunctionSpec, path Path) *ValidationError {
	if !fn.Function.Known() {
		return newError(ErrCodeUnknownOperator, path,
			"unknown window function %q", fn.Function)
	}

	if fn.Function.ranking() {
		if fn.Field != "" {
			return newError(ErrCodeRankingFunctionWithField, path,
				"ranking function %q must not carry a field", fn.Function)
		}
	} else if fn.Field == "" {
		return newError(ErrCodeOffsetFunctionWithoutField, path,
			"window function %q requires a field", fn.Function)
	}

	if fn.Alias == "" {
		return newError(ErrCodeMissingAlias, path,
			"window function %q requires an alias", fn.Function)
	}

	if fn.Over.Frame != nil {
		if len(fn.Over.OrderBy) == 0 {
			return newError(ErrCodeFrameWithoutOrder, path.Key("over").Key("frame"),
				"a window frame requires an orderBy")
		}
		if err := validateFrame(*fn.Over.Frame, path.Key("over").Key("frame")); err != nil {
			return err
		}
	}

	return nil
}

func validateFrame(frame WindowFrame, path Path) *ValidationError {
	if frame.Mode != FrameRows && frame.Mode != FrameRange {
		return newError(ErrCodeUnknownOperator, path.Key("mode"),
			"unknown frame mode %q", frame.Mode)
	}
	if err := validateFrameBound(frame.Start, path.Key("start")); err != nil {
		return err
	}
	return validateFrameBound(frame.End, path.Key("end"))
}

func validateFrameBound(bound FrameBound, path Path) *ValidationError {
	switch bound.Kind {
	case BoundUnboundedPreceding, BoundCurrentRow, BoundUnboundedFollowing:
		return nil
	case BoundPreceding, BoundFollowing:
		if bound.Offset < 0 {
			return newError(ErrCodeNegativeLimit, path,
				"frame bound offset must be non-negative, got %d", bound.Offset)
		}
		return nil
	default:
		return newError(ErrCodeUnknownOperator, path,
			"unknown frame bound %q", bound.Kind)
	}
}
