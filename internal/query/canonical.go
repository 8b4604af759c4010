package query

import (
	"sort"

	"github.com/karst-db/karst/internal/ir"
)

// CanonicalQuery is a validated envelope in canonical form: two
// syntactically different but semantically identical envelopes normalize to
// the same CanonicalQuery, so downstream executors can cache and memoize on
// its fingerprint.
//
// The underlying envelope is unexported; a CanonicalQuery is only produced
// by Validate, never constructed directly.
type CanonicalQuery struct {
	query Envelope
}

// Query returns the canonical envelope. Re-validating it is idempotent:
// it yields an equal CanonicalQuery.
func (c *CanonicalQuery) Query() Envelope {
	return c.query
}

// Fingerprint returns the content-addressed identity of the canonical wire
// form, the memoization key for downstream executors.
func (c *CanonicalQuery) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainQuery, encodeEnvelope(&c.query))
}

// MarshalCanonical renders the canonical wire JSON (RFC 8785 form).
func (c *CanonicalQuery) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(encodeEnvelope(&c.query))
}

// CursorFingerprint returns the content-addressed identity of the cursor
// map under the cursor domain, or "" when the query does not paginate by
// cursor. Executors hand it back with the next page's cursor so callers can
// detect a resume token that drifted from the query that issued it; the
// domain separation keeps it from ever colliding with a query fingerprint.
func (c *CanonicalQuery) CursorFingerprint() (string, error) {
	if c.query.Cursor == nil || len(c.query.Cursor.Cursor) == 0 {
		return "", nil
	}
	return ir.Fingerprint(ir.DomainCursor, c.query.Cursor.Cursor)
}

// normalizeEnvelope produces a fresh canonical envelope:
//   - groupBy sorted
//   - top-level scalar selections deduplicated, order-preserving
//   - sort directions defaulted to asc, exactly once, here
//   - single-operand And/Or collapsed throughout filter trees
//   - subqueries normalized recursively
//
// The input is never mutated.
func normalizeEnvelope(env *Envelope) *Envelope {
	out := &Envelope{
		Object:   env.Object,
		Distinct: env.Distinct,
	}

	out.Fields = dedupeFields(env.Fields)
	out.Where = NormalizeFilter(env.Where)
	out.Having = NormalizeFilter(env.Having)

	if len(env.GroupBy) > 0 {
		out.GroupBy = append([]string(nil), env.GroupBy...)
		sort.Strings(out.GroupBy)
	}

	out.OrderBy = normalizeSorts(env.OrderBy)

	if len(env.Joins) > 0 {
		out.Joins = make([]JoinSpec, len(env.Joins))
		for i, join := range env.Joins {
			out.Joins[i] = normalizeJoin(join)
		}
	}

	if len(env.WindowFunctions) > 0 {
		out.WindowFunctions = make([]WindowFunctionSpec, len(env.WindowFunctions))
		for i, fn := range env.WindowFunctions {
			out.WindowFunctions[i] = normalizeWindowFunction(fn)
		}
	}

	if len(env.Aggregations) > 0 {
		out.Aggregations = append([]AggregationSpec(nil), env.Aggregations...)
	}

	if env.Offset != nil {
		offset := *env.Offset
		out.Offset = &offset
	}
	if env.Cursor != nil {
		cursor := *env.Cursor
		out.Cursor = &cursor
	}

	return out
}

// dedupeFields drops repeated top-level scalar names, keeping the first
// occurrence. Relations are kept as-is: validation already rejected duplicate
// output names inside their sub-selections, so only the top level ever
// carries a tolerated repeat.
func dedupeFields(fields []FieldSelection) []FieldSelection {
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(fields))
	out := make([]FieldSelection, 0, len(fields))
	for _, sel := range fields {
		if scalar, ok := asScalar(sel); ok {
			if seen[scalar.Name] {
				continue
			}
			seen[scalar.Name] = true
			out = append(out, scalar)
			continue
		}
		out = append(out, sel)
	}
	return out
}

func normalizeSorts(sorts []SortSpec) []SortSpec {
	if len(sorts) == 0 {
		return nil
	}
	out := make([]SortSpec, len(sorts))
	for i, s := range sorts {
		if s.Direction == "" {
			s.Direction = DirectionAsc
		}
		out[i] = s
	}
	return out
}

func normalizeJoin(join JoinSpec) JoinSpec {
	out := join
	out.On = NormalizeFilter(join.On)
	if sub, ok := join.Target.(Subquery); ok && sub.Query != nil {
		out.Target = Subquery{Query: normalizeEnvelope(sub.Query)}
	}
	return out
}

func normalizeWindowFunction(fn WindowFunctionSpec) WindowFunctionSpec {
	out := fn
	out.Over.OrderBy = normalizeSorts(fn.Over.OrderBy)
	if len(fn.Over.PartitionBy) > 0 {
		out.Over.PartitionBy = append([]string(nil), fn.Over.PartitionBy...)
	}
	if fn.Over.Frame != nil {
		frame := *fn.Over.Frame
		out.Over.Frame = &frame
	}
	return out
}
