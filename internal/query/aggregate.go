package query

// AggregateFunc is the closed enumeration of grouped aggregation functions.
type AggregateFunc string

const (
	AggCount         AggregateFunc = "count"
	AggSum           AggregateFunc = "sum"
	AggAvg           AggregateFunc = "avg"
	AggMin           AggregateFunc = "min"
	AggMax           AggregateFunc = "max"
	AggCountDistinct AggregateFunc = "count_distinct"
	AggArrayAgg      AggregateFunc = "array_agg"
	AggStringAgg     AggregateFunc = "string_agg"
)

// Known reports whether fn is a member of the closed enumeration.
func (fn AggregateFunc) Known() bool {
	switch fn {
	case AggCount, AggSum, AggAvg, AggMin, AggMax,
		AggCountDistinct, AggArrayAgg, AggStringAgg:
		return true
	}
	return false
}

// AggregationSpec is one function/field/alias triple of a grouped query.
//
// Field is required for every function except count (the bare row count).
// Alias is always required: the computed column is addressable only by it.
// Distinct requests per-aggregation deduplication; it exists so the caller
// never needs envelope-level distinct in an aggregate query, where pre- vs
// post-aggregation semantics would be ambiguous.
type AggregationSpec struct {
	Function AggregateFunc
	Field    string
	Alias    string
	Distinct bool
}

// CheckAggregationConsistency enforces the grouping rules of an envelope,
// in order:
//  1. When aggregations are present, selected fields may only reference
//     columns in groupBy or aggregation aliases (UNGROUPED_FIELD_IN_AGGREGATE_QUERY).
//  2. having requires groupBy or aggregations (HAVING_WITHOUT_GROUPING).
//  3. Envelope-level distinct is rejected alongside aggregations
//     (DISTINCT_WITH_AGGREGATION).
func CheckAggregationConsistency(env *Envelope) error {
	if err := checkAggregationConsistency(env, nil); err != nil {
		return err
	}
	return nil
}

func checkAggregationConsistency(env *Envelope, path Path) *ValidationError {
	grouped := make(map[string]bool, len(env.GroupBy))
	for _, field := range env.GroupBy {
		grouped[field] = true
	}

	if len(env.Aggregations) > 0 {
		aliases := make(map[string]bool, len(env.Aggregations))
		for i, agg := range env.Aggregations {
			aggPath := path.Key("aggregations").Index(i)
			if !agg.Function.Known() {
				return newError(ErrCodeUnknownOperator, aggPath,
					"unknown aggregation function %q", agg.Function)
			}
			if agg.Function != AggCount && agg.Field == "" {
				return newError(ErrCodeAggregationWithoutField, aggPath,
					"aggregation function %q requires a field", agg.Function)
			}
			if agg.Alias == "" {
				return newError(ErrCodeMissingAlias, aggPath,
					"aggregation %q requires an alias", agg.Function)
			}
			aliases[agg.Alias] = true
		}

		for i, sel := range env.Fields {
			name := outputName(sel)
			if !grouped[name] && !aliases[name] {
				return newError(ErrCodeUngroupedFieldInAggregateQuery, path.Key("fields").Index(i),
					"field %q is neither grouped nor an aggregation alias", name)
			}
		}
	}

	if env.Having != nil && len(env.GroupBy) == 0 && len(env.Aggregations) == 0 {
		return newError(ErrCodeHavingWithoutGrouping, path.Key("having"),
			"having requires groupBy or aggregations")
	}

	if env.Distinct && len(env.Aggregations) > 0 {
		return newError(ErrCodeDistinctWithAggregation, path.Key("distinct"),
			"distinct is ambiguous with aggregations; use the per-aggregation distinct flag")
	}

	return nil
}
