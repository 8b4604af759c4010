package query

import "github.com/karst-db/karst/internal/ir"

// The wire format is the stable boundary representation persisted in saved
// queries and templates:
//   - a filter leaf is the 3-element array [field, operator, value]
//   - and/or/not are arrays tagged by a leading logic-operator string
//   - all other nodes are keyed objects
//
// Encoding goes through ir.Value so the same tree feeds both plain JSON
// (MarshalJSON) and canonical JSON (fingerprinting).

// MarshalJSON implements json.Marshaler for Envelope using the wire format.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return ir.MarshalValue(encodeEnvelope(&e))
}

func encodeEnvelope(env *Envelope) ir.Map {
	out := ir.Map{
		"object": ir.String(env.Object),
	}

	if len(env.Fields) > 0 {
		fields := make(ir.Sequence, len(env.Fields))
		for i, sel := range env.Fields {
			fields[i] = encodeSelection(sel)
		}
		out["fields"] = fields
	}

	if env.Where != nil {
		out["where"] = encodeFilter(env.Where)
	}

	if len(env.Joins) > 0 {
		joins := make(ir.Sequence, len(env.Joins))
		for i, join := range env.Joins {
			joins[i] = encodeJoin(join)
		}
		out["joins"] = joins
	}

	if len(env.GroupBy) > 0 {
		out["groupBy"] = encodeStrings(env.GroupBy)
	}

	if env.Having != nil {
		out["having"] = encodeFilter(env.Having)
	}

	if len(env.OrderBy) > 0 {
		out["orderBy"] = encodeSorts(env.OrderBy)
	}

	if len(env.WindowFunctions) > 0 {
		fns := make(ir.Sequence, len(env.WindowFunctions))
		for i, fn := range env.WindowFunctions {
			fns[i] = encodeWindowFunction(fn)
		}
		out["windowFunctions"] = fns
	}

	if len(env.Aggregations) > 0 {
		aggs := make(ir.Sequence, len(env.Aggregations))
		for i, agg := range env.Aggregations {
			aggs[i] = encodeAggregation(agg)
		}
		out["aggregations"] = aggs
	}

	if env.Distinct {
		out["distinct"] = ir.Bool(true)
	}

	if env.Offset != nil {
		if env.Offset.Limit != nil {
			out["limit"] = ir.Int(*env.Offset.Limit)
		}
		if env.Offset.Offset != nil {
			out["offset"] = ir.Int(*env.Offset.Offset)
		}
	}
	if env.Cursor != nil {
		out["cursor"] = env.Cursor.Cursor
		if env.Cursor.Limit != nil {
			out["limit"] = ir.Int(*env.Cursor.Limit)
		}
	}

	return out
}

func encodeFilter(expr FilterExpression) ir.Value {
	switch e := expr.(type) {
	case Predicate:
		return encodePredicate(e)
	case *Predicate:
		return encodePredicate(*e)
	case And:
		return encodeLogical("and", e.Operands)
	case *And:
		return encodeLogical("and", e.Operands)
	case Or:
		return encodeLogical("or", e.Operands)
	case *Or:
		return encodeLogical("or", e.Operands)
	case Not:
		return ir.Sequence{ir.String("not"), encodeFilter(e.Operand)}
	case *Not:
		return ir.Sequence{ir.String("not"), encodeFilter(e.Operand)}
	default:
		return ir.Null{}
	}
}

func encodePredicate(p Predicate) ir.Value {
	value := p.Value
	if value == nil {
		value = ir.Null{}
	}
	return ir.Sequence{ir.String(p.Field), ir.String(string(p.Operator)), value}
}

func encodeLogical(tag string, operands []FilterExpression) ir.Value {
	out := make(ir.Sequence, 0, len(operands)+1)
	out = append(out, ir.String(tag))
	for _, operand := range operands {
		out = append(out, encodeFilter(operand))
	}
	return out
}

func encodeSelection(sel FieldSelection) ir.Value {
	if scalar, ok := asScalar(sel); ok {
		return ir.String(scalar.Name)
	}
	rel, ok := asRelation(sel)
	if !ok {
		return ir.Null{}
	}

	out := ir.Map{"relation": ir.String(rel.Name)}
	if rel.Alias != "" {
		out["alias"] = ir.String(rel.Alias)
	}
	if len(rel.SubSelections) > 0 {
		subs := make(ir.Sequence, len(rel.SubSelections))
		for i, sub := range rel.SubSelections {
			subs[i] = encodeSelection(sub)
		}
		out["fields"] = subs
	}
	return out
}

func encodeSorts(sorts []SortSpec) ir.Sequence {
	out := make(ir.Sequence, len(sorts))
	for i, s := range sorts {
		entry := ir.Map{"field": ir.String(s.Field)}
		if s.Direction != "" {
			entry["direction"] = ir.String(string(s.Direction))
		}
		out[i] = entry
	}
	return out
}

func encodeStrings(values []string) ir.Sequence {
	out := make(ir.Sequence, len(values))
	for i, v := range values {
		out[i] = ir.String(v)
	}
	return out
}

func encodeAggregation(agg AggregationSpec) ir.Value {
	out := ir.Map{
		"function": ir.String(string(agg.Function)),
		"alias":    ir.String(agg.Alias),
	}
	if agg.Field != "" {
		out["field"] = ir.String(agg.Field)
	}
	if agg.Distinct {
		out["distinct"] = ir.Bool(true)
	}
	return out
}

func encodeWindowFunction(fn WindowFunctionSpec) ir.Value {
	out := ir.Map{
		"function": ir.String(string(fn.Function)),
		"alias":    ir.String(fn.Alias),
		"over":     encodeWindowSpec(fn.Over),
	}
	if fn.Field != "" {
		out["field"] = ir.String(fn.Field)
	}
	return out
}

func encodeWindowSpec(spec WindowSpec) ir.Map {
	out := ir.Map{}
	if len(spec.PartitionBy) > 0 {
		out["partitionBy"] = encodeStrings(spec.PartitionBy)
	}
	if len(spec.OrderBy) > 0 {
		out["orderBy"] = encodeSorts(spec.OrderBy)
	}
	if spec.Frame != nil {
		out["frame"] = ir.Map{
			"mode":  ir.String(string(spec.Frame.Mode)),
			"start": encodeFrameBound(spec.Frame.Start),
			"end":   encodeFrameBound(spec.Frame.End),
		}
	}
	return out
}

func encodeFrameBound(bound FrameBound) ir.Value {
	switch bound.Kind {
	case BoundPreceding:
		return ir.Map{"preceding": ir.Int(bound.Offset)}
	case BoundFollowing:
		return ir.Map{"following": ir.Int(bound.Offset)}
	default:
		return ir.String(string(bound.Kind))
	}
}

func encodeJoin(join JoinSpec) ir.Value {
	out := ir.Map{
		"type": ir.String(string(join.Type)),
		"on":   encodeFilter(join.On),
	}
	if join.Alias != "" {
		out["alias"] = ir.String(join.Alias)
	}
	switch target := join.Target.(type) {
	case ObjectRef:
		out["target"] = ir.String(string(target))
	case Subquery:
		if target.Query != nil {
			out["subquery"] = encodeEnvelope(target.Query)
		}
	}
	return out
}
