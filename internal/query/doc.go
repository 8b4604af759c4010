// Package query defines Karst's backend-agnostic query IR: the envelope,
// its node types, and the validation/normalization that produces canonical
// queries.
//
// ARCHITECTURE:
//
// The IR sits between query authors and backend executors:
//
//	[caller / saved query] → [Envelope] → Validate → [CanonicalQuery] → [SQL backend]
//	                                                                  → [document store]
//	                                                                  → [REST adapter]
//
// An Envelope describes filtering, field selection, joins (including
// subqueries), grouping, aggregation, window functions, sorting, and
// pagination. Backends lower a CanonicalQuery to their native query form;
// they must honor the operator semantics, join types, and pagination modes
// with equivalent results wherever both backends can express a query.
//
// SEALED INTERFACES:
//
// FilterExpression, FieldSelection, and JoinTarget are sealed interfaces
// using the marker method pattern. Only types in this package implement
// them, which enables exhaustive type switches in backend compilers and
// keeps the node set closed.
//
// VALIDATION:
//
// Validate is all-or-nothing and fail-fast: it returns either a
// CanonicalQuery or the first ValidationError, which carries an ErrorCode
// from the closed taxonomy and the Path of the offending node. Shape and
// consistency are checked here; whether named objects and fields exist is
// deliberately not - name resolution belongs to the metadata service, and
// its errors are a separate category so UIs can tell "malformed query" from
// "unknown field".
//
// CANONICAL FORM:
//
// Normalization sorts groupBy, deduplicates top-level scalar selections,
// substitutes sort-direction defaults, and collapses single-operand logical
// groups. Two semantically identical envelopes normalize to the same
// CanonicalQuery and therefore the same fingerprint, which downstream
// executors use as a cache key.
//
// WIRE FORMAT:
//
// The JSON wire format is stable because calling systems persist it in
// saved queries: a filter leaf is the array [field, operator, value],
// and/or/not are arrays tagged with a leading logic-operator string, and
// every other node is a keyed object. The deprecated filters/top/skip
// tuple form is translated by FromLegacy at the boundary.
package query
