package query

import (
	"encoding/json"
	"fmt"

	"github.com/karst-db/karst/internal/ir"
)

// UnmarshalJSON implements json.Unmarshaler for Envelope using the wire
// format. Decoding reconstructs the tree faithfully; consistency rules are
// Validate's job, so a decoded envelope is in the unvalidated state even
// when well-formed on the wire.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	*e = *env
	return nil
}

func decodeEnvelope(raw map[string]json.RawMessage) (*Envelope, error) {
	env := &Envelope{}

	if obj, ok := raw["object"]; ok {
		if err := json.Unmarshal(obj, &env.Object); err != nil {
			return nil, fmt.Errorf("object: %w", err)
		}
	}

	if fields, ok := raw["fields"]; ok {
		decoded, err := decodeSelections(fields)
		if err != nil {
			return nil, fmt.Errorf("fields: %w", err)
		}
		env.Fields = decoded
	}

	if where, ok := raw["where"]; ok {
		expr, err := decodeFilter(where)
		if err != nil {
			return nil, fmt.Errorf("where: %w", err)
		}
		env.Where = expr
	}

	if joins, ok := raw["joins"]; ok {
		var rawJoins []json.RawMessage
		if err := json.Unmarshal(joins, &rawJoins); err != nil {
			return nil, fmt.Errorf("joins: %w", err)
		}
		env.Joins = make([]JoinSpec, len(rawJoins))
		for i, rawJoin := range rawJoins {
			join, err := decodeJoin(rawJoin)
			if err != nil {
				return nil, fmt.Errorf("joins[%d]: %w", i, err)
			}
			env.Joins[i] = join
		}
	}

	if groupBy, ok := raw["groupBy"]; ok {
		if err := json.Unmarshal(groupBy, &env.GroupBy); err != nil {
			return nil, fmt.Errorf("groupBy: %w", err)
		}
	}

	if having, ok := raw["having"]; ok {
		expr, err := decodeFilter(having)
		if err != nil {
			return nil, fmt.Errorf("having: %w", err)
		}
		env.Having = expr
	}

	if orderBy, ok := raw["orderBy"]; ok {
		sorts, err := decodeSorts(orderBy)
		if err != nil {
			return nil, fmt.Errorf("orderBy: %w", err)
		}
		env.OrderBy = sorts
	}

	if fns, ok := raw["windowFunctions"]; ok {
		var rawFns []json.RawMessage
		if err := json.Unmarshal(fns, &rawFns); err != nil {
			return nil, fmt.Errorf("windowFunctions: %w", err)
		}
		env.WindowFunctions = make([]WindowFunctionSpec, len(rawFns))
		for i, rawFn := range rawFns {
			fn, err := decodeWindowFunction(rawFn)
			if err != nil {
				return nil, fmt.Errorf("windowFunctions[%d]: %w", i, err)
			}
			env.WindowFunctions[i] = fn
		}
	}

	if aggs, ok := raw["aggregations"]; ok {
		var rawAggs []json.RawMessage
		if err := json.Unmarshal(aggs, &rawAggs); err != nil {
			return nil, fmt.Errorf("aggregations: %w", err)
		}
		env.Aggregations = make([]AggregationSpec, len(rawAggs))
		for i, rawAgg := range rawAggs {
			agg, err := decodeAggregation(rawAgg)
			if err != nil {
				return nil, fmt.Errorf("aggregations[%d]: %w", i, err)
			}
			env.Aggregations[i] = agg
		}
	}

	if distinct, ok := raw["distinct"]; ok {
		if err := json.Unmarshal(distinct, &env.Distinct); err != nil {
			return nil, fmt.Errorf("distinct: %w", err)
		}
	}

	if err := decodePagination(raw, env); err != nil {
		return nil, err
	}

	return env, nil
}

// decodePagination assigns pagination from the wire keys limit/offset/cursor.
// A cursor claims the limit; offset alongside a cursor still decodes (into
// OffsetPagination) so that Validate can reject the conflict explicitly
// rather than the decoder overriding one mode silently.
func decodePagination(raw map[string]json.RawMessage, env *Envelope) error {
	var limit, offset *int64
	if rawLimit, ok := raw["limit"]; ok {
		var v int64
		if err := json.Unmarshal(rawLimit, &v); err != nil {
			return fmt.Errorf("limit: %w", err)
		}
		limit = &v
	}
	if rawOffset, ok := raw["offset"]; ok {
		var v int64
		if err := json.Unmarshal(rawOffset, &v); err != nil {
			return fmt.Errorf("offset: %w", err)
		}
		offset = &v
	}

	if rawCursor, ok := raw["cursor"]; ok {
		var cursor ir.Map
		if err := json.Unmarshal(rawCursor, &cursor); err != nil {
			return fmt.Errorf("cursor: %w", err)
		}
		env.Cursor = &CursorPagination{Cursor: cursor, Limit: limit}
		if offset != nil {
			env.Offset = &OffsetPagination{Offset: offset}
		}
		return nil
	}

	if limit != nil || offset != nil {
		env.Offset = &OffsetPagination{Limit: limit, Offset: offset}
	}
	return nil
}

// decodeFilter decodes a wire filter expression. A leaf is exactly
// [field, operator, value] with a known operator string; and/or/not arrays
// are recognized by their leading tag. A field that happens to be named
// "and" still decodes as a leaf because the operator position disambiguates.
func decodeFilter(data json.RawMessage) (FilterExpression, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("filter expression must be an array: %w", err)
	}
	if len(elems) == 0 {
		return nil, fmt.Errorf("filter expression is empty")
	}

	var head string
	if err := json.Unmarshal(elems[0], &head); err != nil {
		return nil, fmt.Errorf("filter expression must start with a string: %w", err)
	}

	if len(elems) == 3 {
		var op string
		if err := json.Unmarshal(elems[1], &op); err == nil && ComparisonOperator(op).Known() {
			value, err := ir.UnmarshalValue(elems[2])
			if err != nil {
				return nil, fmt.Errorf("predicate value: %w", err)
			}
			if _, isNull := value.(ir.Null); isNull {
				value = nil
			}
			return Predicate{Field: head, Operator: ComparisonOperator(op), Value: value}, nil
		}
	}

	switch head {
	case "and", "or":
		if len(elems) < 2 {
			return nil, &ValidationError{Code: ErrCodeEmptyLogicalGroup,
				Message: fmt.Sprintf("%s group has no operands", head)}
		}
		operands := make([]FilterExpression, len(elems)-1)
		for i, elem := range elems[1:] {
			operand, err := decodeFilter(elem)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", head, i, err)
			}
			operands[i] = operand
		}
		if head == "or" {
			return Or{Operands: operands}, nil
		}
		return And{Operands: operands}, nil

	case "not":
		if len(elems) != 2 {
			return nil, fmt.Errorf("not takes exactly one operand, got %d", len(elems)-1)
		}
		operand, err := decodeFilter(elems[1])
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return Not{Operand: operand}, nil
	}

	return nil, fmt.Errorf("malformed filter expression (want [field, operator, value] or a tagged and/or/not array)")
}

func decodeSelections(data json.RawMessage) ([]FieldSelection, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("selection list must be an array: %w", err)
	}
	out := make([]FieldSelection, len(elems))
	for i, elem := range elems {
		sel, err := decodeSelection(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = sel
	}
	return out, nil
}

func decodeSelection(data json.RawMessage) (FieldSelection, error) {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return nil, err
		}
		return Scalar{Name: name}, nil
	}

	var raw struct {
		Relation string          `json:"relation"`
		Alias    string          `json:"alias"`
		Fields   json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("selection must be a string or a relation object: %w", err)
	}
	if raw.Relation == "" {
		return nil, fmt.Errorf("relation selection has no name")
	}

	rel := Relation{Name: raw.Relation, Alias: raw.Alias}
	if raw.Fields != nil {
		subs, err := decodeSelections(raw.Fields)
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", raw.Relation, err)
		}
		rel.SubSelections = subs
	}
	return rel, nil
}

func decodeSorts(data json.RawMessage) ([]SortSpec, error) {
	var raw []struct {
		Field     string `json:"field"`
		Direction string `json:"direction"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]SortSpec, len(raw))
	for i, s := range raw {
		switch s.Direction {
		case "", string(DirectionAsc), string(DirectionDesc):
		default:
			return nil, fmt.Errorf("[%d]: unknown sort direction %q", i, s.Direction)
		}
		out[i] = SortSpec{Field: s.Field, Direction: SortDirection(s.Direction)}
	}
	return out, nil
}

func decodeAggregation(data json.RawMessage) (AggregationSpec, error) {
	var raw struct {
		Function string `json:"function"`
		Field    string `json:"field"`
		Alias    string `json:"alias"`
		Distinct bool   `json:"distinct"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return AggregationSpec{}, err
	}
	return AggregationSpec{
		Function: AggregateFunc(raw.Function),
		Field:    raw.Field,
		Alias:    raw.Alias,
		Distinct: raw.Distinct,
	}, nil
}

func decodeWindowFunction(data json.RawMessage) (WindowFunctionSpec, error) {
	var raw struct {
		Function string          `json:"function"`
		Field    string          `json:"field"`
		Alias    string          `json:"alias"`
		Over     json.RawMessage `json:"over"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return WindowFunctionSpec{}, err
	}

	fn := WindowFunctionSpec{
		Function: WindowFunc(raw.Function),
		Field:    raw.Field,
		Alias:    raw.Alias,
	}
	if raw.Over != nil {
		over, err := decodeWindowSpec(raw.Over)
		if err != nil {
			return WindowFunctionSpec{}, fmt.Errorf("over: %w", err)
		}
		fn.Over = over
	}
	return fn, nil
}

func decodeWindowSpec(data json.RawMessage) (WindowSpec, error) {
	var raw struct {
		PartitionBy []string        `json:"partitionBy"`
		OrderBy     json.RawMessage `json:"orderBy"`
		Frame       json.RawMessage `json:"frame"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return WindowSpec{}, err
	}

	spec := WindowSpec{PartitionBy: raw.PartitionBy}
	if raw.OrderBy != nil {
		sorts, err := decodeSorts(raw.OrderBy)
		if err != nil {
			return WindowSpec{}, fmt.Errorf("orderBy: %w", err)
		}
		spec.OrderBy = sorts
	}
	if raw.Frame != nil {
		frame, err := decodeFrame(raw.Frame)
		if err != nil {
			return WindowSpec{}, fmt.Errorf("frame: %w", err)
		}
		spec.Frame = &frame
	}
	return spec, nil
}

func decodeFrame(data json.RawMessage) (WindowFrame, error) {
	var raw struct {
		Mode  string          `json:"mode"`
		Start json.RawMessage `json:"start"`
		End   json.RawMessage `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return WindowFrame{}, err
	}

	start, err := decodeFrameBound(raw.Start)
	if err != nil {
		return WindowFrame{}, fmt.Errorf("start: %w", err)
	}
	end, err := decodeFrameBound(raw.End)
	if err != nil {
		return WindowFrame{}, fmt.Errorf("end: %w", err)
	}
	return WindowFrame{Mode: FrameMode(raw.Mode), Start: start, End: end}, nil
}

func decodeFrameBound(data json.RawMessage) (FrameBound, error) {
	if len(data) == 0 {
		return FrameBound{}, fmt.Errorf("frame bound is missing")
	}

	if data[0] == '"' {
		var kind string
		if err := json.Unmarshal(data, &kind); err != nil {
			return FrameBound{}, err
		}
		switch FrameBoundKind(kind) {
		case BoundUnboundedPreceding, BoundCurrentRow, BoundUnboundedFollowing:
			return FrameBound{Kind: FrameBoundKind(kind)}, nil
		}
		return FrameBound{}, fmt.Errorf("unknown frame bound %q", kind)
	}

	var raw struct {
		Preceding *int64 `json:"preceding"`
		Following *int64 `json:"following"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return FrameBound{}, err
	}
	switch {
	case raw.Preceding != nil && raw.Following == nil:
		return FrameBound{Kind: BoundPreceding, Offset: *raw.Preceding}, nil
	case raw.Following != nil && raw.Preceding == nil:
		return FrameBound{Kind: BoundFollowing, Offset: *raw.Following}, nil
	default:
		return FrameBound{}, fmt.Errorf("frame bound must set exactly one of preceding/following")
	}
}

func decodeJoin(data json.RawMessage) (JoinSpec, error) {
	var raw struct {
		Type     string          `json:"type"`
		Target   string          `json:"target"`
		Subquery json.RawMessage `json:"subquery"`
		Alias    string          `json:"alias"`
		On       json.RawMessage `json:"on"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return JoinSpec{}, err
	}

	join := JoinSpec{Type: JoinType(raw.Type), Alias: raw.Alias}

	switch {
	case raw.Target != "" && raw.Subquery == nil:
		join.Target = ObjectRef(raw.Target)
	case raw.Subquery != nil && raw.Target == "":
		var sub Envelope
		if err := json.Unmarshal(raw.Subquery, &sub); err != nil {
			return JoinSpec{}, fmt.Errorf("subquery: %w", err)
		}
		join.Target = Subquery{Query: &sub}
	default:
		return JoinSpec{}, fmt.Errorf("join must set exactly one of target/subquery")
	}

	if raw.On != nil {
		on, err := decodeFilter(raw.On)
		if err != nil {
			return JoinSpec{}, fmt.Errorf("on: %w", err)
		}
		join.On = on
	}
	return join, nil
}
