package query

import (
	"encoding/json"
	"fmt"

	"github.com/karst-db/karst/internal/ir"
)

// Legacy wire compatibility. Older callers persist queries in the
// filters/top/skip shape: a flat list of [field, operator, value] tuples
// combined with an implicit AND, plus top/skip paging. FromLegacy translates
// that shape into a canonical Envelope at the boundary; it is a shim, not a
// second core - the translated envelope goes through the same Validate as
// everything else.

// legacyOperators maps deprecated operator spellings to the canonical set.
// Canonical spellings pass through unchanged.
var legacyOperators = map[string]ComparisonOperator{
	"eq":   OpEqual,
	"ne":   OpNotEqual,
	"gt":   OpGreater,
	"ge":   OpGreaterOrEqual,
	"lt":   OpLess,
	"le":   OpLessOrEqual,
	"like": OpContains,
}

// FromLegacy decodes a legacy filters/top/skip query into an Envelope.
func FromLegacy(data []byte) (*Envelope, error) {
	var raw struct {
		Object  string            `json:"object"`
		Fields  []string          `json:"fields"`
		Filters []json.RawMessage `json:"filters"`
		OrderBy json.RawMessage   `json:"orderBy"`
		Top     *int64            `json:"top"`
		Skip    *int64            `json:"skip"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("legacy query: %w", err)
	}

	env := &Envelope{Object: raw.Object}

	for _, name := range raw.Fields {
		env.Fields = append(env.Fields, Scalar{Name: name})
	}

	if len(raw.Filters) > 0 {
		operands := make([]FilterExpression, len(raw.Filters))
		for i, rawFilter := range raw.Filters {
			pred, err := decodeLegacyTuple(rawFilter)
			if err != nil {
				return nil, fmt.Errorf("legacy filters[%d]: %w", i, err)
			}
			operands[i] = pred
		}
		// The legacy form ANDs its tuples implicitly; the canonical form
		// makes the composition explicit. A single tuple stays a bare
		// predicate.
		if len(operands) == 1 {
			env.Where = operands[0]
		} else {
			env.Where = And{Operands: operands}
		}
	}

	if raw.OrderBy != nil {
		sorts, err := decodeSorts(raw.OrderBy)
		if err != nil {
			return nil, fmt.Errorf("legacy orderBy: %w", err)
		}
		env.OrderBy = sorts
	}

	if raw.Top != nil || raw.Skip != nil {
		env.Offset = &OffsetPagination{Limit: raw.Top, Offset: raw.Skip}
	}

	return env, nil
}

func decodeLegacyTuple(data json.RawMessage) (Predicate, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return Predicate{}, fmt.Errorf("filter tuple must be an array: %w", err)
	}
	if len(elems) != 3 {
		return Predicate{}, fmt.Errorf("filter tuple must have 3 elements, got %d", len(elems))
	}

	var field, op string
	if err := json.Unmarshal(elems[0], &field); err != nil {
		return Predicate{}, fmt.Errorf("field: %w", err)
	}
	if err := json.Unmarshal(elems[1], &op); err != nil {
		return Predicate{}, fmt.Errorf("operator: %w", err)
	}

	operator, ok := legacyOperators[op]
	if !ok {
		operator = ComparisonOperator(op)
		if !operator.Known() {
			return Predicate{}, fmt.Errorf("unknown legacy operator %q", op)
		}
	}

	value, err := ir.UnmarshalValue(elems[2])
	if err != nil {
		return Predicate{}, fmt.Errorf("value: %w", err)
	}
	if _, isNull := value.(ir.Null); isNull {
		value = nil
	}

	return Predicate{Field: field, Operator: operator, Value: value}, nil
}
