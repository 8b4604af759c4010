// Package querysql lowers canonical queries to parameterized SQL for SQLite.
//
// It is a reference consumer of the IR: one backend among the executors a
// CanonicalQuery can feed. Values are always parameterized, never
// interpolated into the SQL text.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/karst-db/karst/internal/ir"
	"github.com/karst-db/karst/internal/query"
)

// Compiler compiles a CanonicalQuery to parameterized SQL.
type Compiler struct{}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts a canonical query to SQL.
// Returns (sql, params, error); params line up with the ? placeholders in
// textual order.
func (c *Compiler) Compile(q *query.CanonicalQuery) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	env := q.Query()
	return c.compileEnvelope(&env)
}

func (c *Compiler) compileEnvelope(env *query.Envelope) (string, []any, error) {
	var sql strings.Builder
	var params []any

	selectClause, err := c.compileSelect(env)
	if err != nil {
		return "", nil, err
	}
	sql.WriteString("SELECT ")
	if env.Distinct {
		sql.WriteString("DISTINCT ")
	}
	sql.WriteString(selectClause)
	sql.WriteString(" FROM ")
	sql.WriteString(quoteIdentifier(env.Object))

	for i, join := range env.Joins {
		joinSQL, joinParams, err := c.compileJoin(join)
		if err != nil {
			return "", nil, fmt.Errorf("join %d: %w", i, err)
		}
		sql.WriteString(" ")
		sql.WriteString(joinSQL)
		params = append(params, joinParams...)
	}

	whereSQL, whereParams, err := c.compileWhere(env)
	if err != nil {
		return "", nil, err
	}
	if whereSQL != "" {
		sql.WriteString(" WHERE ")
		sql.WriteString(whereSQL)
		params = append(params, whereParams...)
	}

	if len(env.GroupBy) > 0 {
		cols := make([]string, len(env.GroupBy))
		for i, field := range env.GroupBy {
			cols[i] = quoteIdentifier(field)
		}
		sql.WriteString(" GROUP BY ")
		sql.WriteString(strings.Join(cols, ", "))
	}

	if env.Having != nil {
		havingSQL, havingParams, err := c.compilePredicate(env.Having)
		if err != nil {
			return "", nil, fmt.Errorf("having: %w", err)
		}
		sql.WriteString(" HAVING ")
		sql.WriteString(havingSQL)
		params = append(params, havingParams...)
	}

	if len(env.OrderBy) > 0 {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(c.compileSorts(env.OrderBy))
	}

	limitSQL, limitParams := c.compilePagination(env)
	sql.WriteString(limitSQL)
	params = append(params, limitParams...)

	return sql.String(), params, nil
}

// compileSelect builds the projection list from field selections,
// aggregations, and window functions. An empty projection lowers to *,
// matching the IR convention that omitted fields mean all scalar fields.
func (c *Compiler) compileSelect(env *query.Envelope) (string, error) {
	var parts []string

	for _, sel := range env.Fields {
		switch s := sel.(type) {
		case query.Scalar:
			parts = append(parts, quoteIdentifier(s.Name))
		case *query.Scalar:
			parts = append(parts, quoteIdentifier(s.Name))
		default:
			// Relation projections shape nested documents; flat SQL rows
			// cannot carry them. Callers join instead.
			return "", fmt.Errorf("relation selections are not representable in SQL; use a join")
		}
	}

	for _, agg := range env.Aggregations {
		expr, err := c.compileAggregation(agg)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}

	for _, fn := range env.WindowFunctions {
		expr, err := c.compileWindowFunction(fn)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}

	if len(parts) == 0 {
		return "*", nil
	}
	return strings.Join(parts, ", "), nil
}

func (c *Compiler) compileAggregation(agg query.AggregationSpec) (string, error) {
	field := quoteIdentifier(agg.Field)
	if agg.Distinct {
		field = "DISTINCT " + field
	}

	var expr string
	switch agg.Function {
	case query.AggCount:
		if agg.Field == "" {
			expr = "COUNT(*)"
		} else {
			expr = "COUNT(" + field + ")"
		}
	case query.AggCountDistinct:
		expr = "COUNT(DISTINCT " + quoteIdentifier(agg.Field) + ")"
	case query.AggSum:
		expr = "SUM(" + field + ")"
	case query.AggAvg:
		expr = "AVG(" + field + ")"
	case query.AggMin:
		expr = "MIN(" + field + ")"
	case query.AggMax:
		expr = "MAX(" + field + ")"
	case query.AggArrayAgg:
		expr = "JSON_GROUP_ARRAY(" + field + ")"
	case query.AggStringAgg:
		expr = "GROUP_CONCAT(" + field + ")"
	default:
		return "", fmt.Errorf("unsupported aggregation function %q", agg.Function)
	}

	if agg.Alias != "" {
		expr += " AS " + quoteIdentifier(agg.Alias)
	}
	return expr, nil
}

func (c *Compiler) compileWindowFunction(fn query.WindowFunctionSpec) (string, error) {
	var call string
	switch fn.Function {
	case query.WinRowNumber, query.WinRank, query.WinDenseRank, query.WinPercentRank:
		call = strings.ToUpper(string(fn.Function)) + "()"
	case query.WinLag, query.WinLead, query.WinFirstValue, query.WinLastValue,
		query.WinSum, query.WinAvg, query.WinCount, query.WinMin, query.WinMax:
		call = strings.ToUpper(string(fn.Function)) + "(" + quoteIdentifier(fn.Field) + ")"
	default:
		return "", fmt.Errorf("unsupported window function %q", fn.Function)
	}

	var over []string
	if len(fn.Over.PartitionBy) > 0 {
		cols := make([]string, len(fn.Over.PartitionBy))
		for i, field := range fn.Over.PartitionBy {
			cols[i] = quoteIdentifier(field)
		}
		over = append(over, "PARTITION BY "+strings.Join(cols, ", "))
	}
	if len(fn.Over.OrderBy) > 0 {
		over = append(over, "ORDER BY "+c.compileSorts(fn.Over.OrderBy))
	}
	if fn.Over.Frame != nil {
		over = append(over, c.compileFrame(*fn.Over.Frame))
	}

	expr := call + " OVER (" + strings.Join(over, " ") + ")"
	if fn.Alias != "" {
		expr += " AS " + quoteIdentifier(fn.Alias)
	}
	return expr, nil
}

// compileFrame renders a frame clause. Bound offsets are integers under the
// IR's control, not caller values, so they render as literals - placeholders
// are not accepted in frame bounds.
func (c *Compiler) compileFrame(frame query.WindowFrame) string {
	mode := "ROWS"
	if frame.Mode == query.FrameRange {
		mode = "RANGE"
	}
	return mode + " BETWEEN " + frameBound(frame.Start) + " AND " + frameBound(frame.End)
}

func frameBound(bound query.FrameBound) string {
	switch bound.Kind {
	case query.BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case query.BoundPreceding:
		return strconv.FormatInt(bound.Offset, 10) + " PRECEDING"
	case query.BoundCurrentRow:
		return "CURRENT ROW"
	case query.BoundFollowing:
		return strconv.FormatInt(bound.Offset, 10) + " FOLLOWING"
	case query.BoundUnboundedFollowing:
		return "UNBOUNDED FOLLOWING"
	default:
		return "CURRENT ROW"
	}
}

func (c *Compiler) compileJoin(join query.JoinSpec) (string, []any, error) {
	var kind string
	switch join.Type {
	case query.JoinInner:
		kind = "INNER JOIN"
	case query.JoinLeft:
		kind = "LEFT JOIN"
	case query.JoinRight:
		kind = "RIGHT JOIN"
	case query.JoinFull:
		kind = "FULL JOIN"
	default:
		return "", nil, fmt.Errorf("unsupported join type %q", join.Type)
	}

	var target string
	var params []any
	switch t := join.Target.(type) {
	case query.ObjectRef:
		target = quoteIdentifier(string(t))
	case query.Subquery:
		subSQL, subParams, err := c.compileEnvelope(t.Query)
		if err != nil {
			return "", nil, fmt.Errorf("subquery: %w", err)
		}
		target = "(" + subSQL + ")"
		params = subParams
	default:
		return "", nil, fmt.Errorf("join has no target")
	}

	if join.Alias != "" {
		target += " AS " + quoteIdentifier(join.Alias)
	}

	onSQL, onParams, err := c.compileFilter(join.On, true)
	if err != nil {
		return "", nil, fmt.Errorf("on: %w", err)
	}
	params = append(params, onParams...)

	return kind + " " + target + " ON " + onSQL, params, nil
}

// compileWhere combines the envelope filter with the cursor keyset
// predicate, when cursor pagination is in play.
func (c *Compiler) compileWhere(env *query.Envelope) (string, []any, error) {
	var parts []string
	var params []any

	if env.Where != nil {
		sql, filterParams, err := c.compilePredicate(env.Where)
		if err != nil {
			return "", nil, fmt.Errorf("where: %w", err)
		}
		parts = append(parts, sql)
		params = append(params, filterParams...)
	}

	if env.Cursor != nil && len(env.Cursor.Cursor) > 0 {
		sql, cursorParams := c.compileCursor(env)
		parts = append(parts, sql)
		params = append(params, cursorParams...)
	}

	return strings.Join(parts, " AND "), params, nil
}

// compileCursor lowers an opaque cursor to a keyset row-value comparison.
// Keys are taken in canonical order; the comparison direction follows the
// first sort key so iteration resumes where the previous page ended.
func (c *Compiler) compileCursor(env *query.Envelope) (string, []any) {
	keys := env.Cursor.Cursor.SortedKeys()

	cols := make([]string, len(keys))
	holes := make([]string, len(keys))
	params := make([]any, len(keys))
	for i, key := range keys {
		cols[i] = quoteIdentifier(key)
		holes[i] = "?"
		params[i] = ir.ToGo(env.Cursor.Cursor[key])
	}

	op := ">"
	if len(env.OrderBy) > 0 && env.OrderBy[0].Direction == query.DirectionDesc {
		op = "<"
	}

	if len(keys) == 1 {
		return cols[0] + " " + op + " ?", params
	}
	return "(" + strings.Join(cols, ", ") + ") " + op + " (" + strings.Join(holes, ", ") + ")", params
}

func (c *Compiler) compileSorts(sorts []query.SortSpec) string {
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		direction := "ASC"
		if s.Direction == query.DirectionDesc {
			direction = "DESC"
		}
		parts[i] = quoteIdentifier(s.Field) + " " + direction
	}
	return strings.Join(parts, ", ")
}

func (c *Compiler) compilePagination(env *query.Envelope) (string, []any) {
	var limit, offset *int64
	if env.Offset != nil {
		limit = env.Offset.Limit
		offset = env.Offset.Offset
	}
	if env.Cursor != nil {
		limit = env.Cursor.Limit
	}

	var sql string
	var params []any
	if limit != nil {
		sql += " LIMIT ?"
		params = append(params, *limit)
	}
	if offset != nil {
		if limit == nil {
			// SQLite requires LIMIT before OFFSET; -1 means no cap.
			sql += " LIMIT -1"
		}
		sql += " OFFSET ?"
		params = append(params, *offset)
	}
	return sql, params
}

// compilePredicate compiles a FilterExpression to a WHERE/HAVING
// fragment. Values are never interpolated - always ? placeholders.
func (c *Compiler) compilePredicate(expr query.FilterExpression) (string, []any, error) {
	return c.compileFilter(expr, false)
}

// compileFilter is the recursive filter walker. When columnRefs is set
// (join ON conditions), a string value shaped like a qualified field path
// compiles to a column reference instead of a bound parameter, so equi-joins
// are expressible.
func (c *Compiler) compileFilter(expr query.FilterExpression, columnRefs bool) (string, []any, error) {
	switch e := expr.(type) {
	case nil:
		return "1 = 1", nil, nil
	case query.Predicate:
		return c.compileComparison(e, columnRefs)
	case *query.Predicate:
		return c.compileComparison(*e, columnRefs)
	case query.And:
		return c.compileLogical(e.Operands, " AND ", columnRefs)
	case *query.And:
		return c.compileLogical(e.Operands, " AND ", columnRefs)
	case query.Or:
		return c.compileLogical(e.Operands, " OR ", columnRefs)
	case *query.Or:
		return c.compileLogical(e.Operands, " OR ", columnRefs)
	case query.Not:
		sql, params, err := c.compileFilter(e.Operand, columnRefs)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case *query.Not:
		sql, params, err := c.compileFilter(e.Operand, columnRefs)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter expression type: %T", expr)
	}
}

func (c *Compiler) compileLogical(operands []query.FilterExpression, sep string, columnRefs bool) (string, []any, error) {
	parts := make([]string, len(operands))
	var params []any
	for i, operand := range operands {
		sql, operandParams, err := c.compileFilter(operand, columnRefs)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		params = append(params, operandParams...)
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

func (c *Compiler) compileComparison(p query.Predicate, columnRefs bool) (string, []any, error) {
	field := quoteIdentifier(p.Field)

	rhs := func(op string) (string, []any, error) {
		if columnRefs {
			if ref, ok := columnReference(p.Value); ok {
				return field + " " + op + " " + ref, nil, nil
			}
		}
		return field + " " + op + " ?", []any{ir.ToGo(p.Value)}, nil
	}

	switch p.Operator {
	case query.OpEqual:
		return rhs("=")
	case query.OpNotEqual:
		return rhs("!=")
	case query.OpGreater:
		return rhs(">")
	case query.OpGreaterOrEqual:
		return rhs(">=")
	case query.OpLess:
		return rhs("<")
	case query.OpLessOrEqual:
		return rhs("<=")

	case query.OpStartsWith:
		return field + ` LIKE ? ESCAPE '\'`, []any{escapeLike(p.Value) + "%"}, nil
	case query.OpContains:
		return field + ` LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(p.Value) + "%"}, nil
	case query.OpNotContains:
		return field + ` NOT LIKE ? ESCAPE '\'`, []any{"%" + escapeLike(p.Value) + "%"}, nil

	case query.OpBetween:
		seq, ok := p.Value.(ir.Sequence)
		if !ok || len(seq) != 2 {
			return "", nil, fmt.Errorf("between requires two bounds")
		}
		return field + " BETWEEN ? AND ?", []any{ir.ToGo(seq[0]), ir.ToGo(seq[1])}, nil

	case query.OpIn, query.OpNotIn:
		seq, ok := p.Value.(ir.Sequence)
		if !ok || len(seq) == 0 {
			return "", nil, fmt.Errorf("%s requires a non-empty sequence", p.Operator)
		}
		holes := make([]string, len(seq))
		params := make([]any, len(seq))
		for i, elem := range seq {
			holes[i] = "?"
			params[i] = ir.ToGo(elem)
		}
		op := " IN ("
		if p.Operator == query.OpNotIn {
			op = " NOT IN ("
		}
		return field + op + strings.Join(holes, ", ") + ")", params, nil

	case query.OpIsNull:
		return field + " IS NULL", nil, nil
	case query.OpIsNotNull:
		return field + " IS NOT NULL", nil, nil

	default:
		return "", nil, fmt.Errorf("unsupported operator %q", p.Operator)
	}
}

// columnReference reports whether a predicate value names a column. Only
// qualified paths (alias.field) qualify, and only in ON position, so bare
// string literals are never misread as columns.
func columnReference(v ir.Value) (string, bool) {
	s, ok := v.(ir.String)
	if !ok || !strings.Contains(string(s), ".") {
		return "", false
	}
	for _, part := range strings.Split(string(s), ".") {
		if !isIdentifier(part) {
			return "", false
		}
	}
	return quoteIdentifier(string(s)), true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// escapeLike escapes LIKE wildcards in a string value so user text never
// acts as a pattern.
func escapeLike(v ir.Value) string {
	s, _ := v.(ir.String)
	out := strings.ReplaceAll(string(s), `\`, `\\`)
	out = strings.ReplaceAll(out, "%", `\%`)
	return strings.ReplaceAll(out, "_", `\_`)
}

// quoteIdentifier quotes an identifier, splitting qualified names so each
// part is quoted independently ("orders"."customer_id").
func quoteIdentifier(name string) string {
	if name == "" {
		return name
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
