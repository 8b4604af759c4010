package querysql

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karst-db/karst/internal/ir"
	"github.com/karst-db/karst/internal/query"
)

// openTestDB creates an in-memory SQLite database seeded with a small
// orders/customers data set that the compiled SQL runs against.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE customers (
			id     INTEGER PRIMARY KEY,
			name   TEXT NOT NULL,
			region TEXT
		);
		CREATE TABLE orders (
			id          INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL,
			status      TEXT NOT NULL,
			total       REAL NOT NULL
		);
		INSERT INTO customers VALUES
			(1, 'Acme', 'west'),
			(2, 'Globex', 'east'),
			(3, 'Initech', NULL);
		INSERT INTO orders VALUES
			(10, 1, 'open',    50.0),
			(11, 1, 'shipped', 75.0),
			(12, 2, 'open',    20.0),
			(13, 2, 'open',    90.0),
			(14, 3, 'shipped', 10.0);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

func mustCanonical(t *testing.T, env *query.Envelope) *query.CanonicalQuery {
	t.Helper()
	canonical, err := query.Validate(env)
	require.NoError(t, err)
	return canonical
}

// queryIDs runs compiled SQL and collects the first column as int64s.
func queryIDs(t *testing.T, db *sql.DB, sqlText string, params []any) []int64 {
	t.Helper()
	rows, err := db.Query(sqlText, params...)
	require.NoError(t, err, "query failed: %s", sqlText)
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

func int64ptr(v int64) *int64 { return &v }

func TestCompileBasicSelect(t *testing.T) {
	db := openTestDB(t)
	compiler := NewCompiler()

	canonical := mustCanonical(t, &query.Envelope{
		Object: "orders",
		Fields: []query.FieldSelection{query.Scalar{Name: "id"}},
		Where: query.Predicate{
			Field:    "status",
			Operator: query.OpEqual,
			Value:    ir.String("open"),
		},
		OrderBy: []query.SortSpec{{Field: "total", Direction: query.DirectionDesc}},
		Offset:  &query.OffsetPagination{Limit: int64ptr(2)},
	})

	sqlText, params, err := compiler.Compile(canonical)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "orders" WHERE "status" = ? ORDER BY "total" DESC LIMIT ?`, sqlText)
	assert.Equal(t, []any{"open", int64(2)}, params)

	assert.Equal(t, []int64{13, 10}, queryIDs(t, db, sqlText, params))
}

func TestCompileOperators(t *testing.T) {
	db := openTestDB(t)
	compiler := NewCompiler()

	tests := []struct {
		name   string
		where  query.FilterExpression
		object string
		want   []int64
	}{
		{
			name:   "between",
			object: "orders",
			where: query.Predicate{
				Field:    "total",
				Operator: query.OpBetween,
				Value:    ir.Sequence{ir.Int(20), ir.Int(75)},
			},
			want: []int64{10, 11, 12},
		},
		{
			name:   "in",
			object: "orders",
			where: query.Predicate{
				Field:    "id",
				Operator: query.OpIn,
				Value:    ir.Sequence{ir.Int(10), ir.Int(14)},
			},
			want: []int64{10, 14},
		},
		{
			name:   "not in",
			object: "orders",
			where: query.Predicate{
				Field:    "status",
				Operator: query.OpNotIn,
				Value:    ir.Sequence{ir.String("shipped")},
			},
			want: []int64{10, 12, 13},
		},
		{
			name:   "is null",
			object: "customers",
			where: query.Predicate{
				Field:    "region",
				Operator: query.OpIsNull,
			},
			want: []int64{3},
		},
		{
			name:   "is not null",
			object: "customers",
			where: query.Predicate{
				Field:    "region",
				Operator: query.OpIsNotNull,
			},
			want: []int64{1, 2},
		},
		{
			name:   "starts_with",
			object: "customers",
			where: query.Predicate{
				Field:    "name",
				Operator: query.OpStartsWith,
				Value:    ir.String("Glo"),
			},
			want: []int64{2},
		},
		{
			name:   "contains",
			object: "customers",
			where: query.Predicate{
				Field:    "name",
				Operator: query.OpContains,
				Value:    ir.String("tec"),
			},
			want: []int64{3},
		},
		{
			name:   "not_contains",
			object: "customers",
			where: query.Predicate{
				Field:    "name",
				Operator: query.OpNotContains,
				Value:    ir.String("x"),
			},
			want: []int64{1, 3},
		},
		{
			name:   "nested logic",
			object: "orders",
			where: query.And{Operands: []query.FilterExpression{
				query.Predicate{Field: "status", Operator: query.OpEqual, Value: ir.String("open")},
				query.Or{Operands: []query.FilterExpression{
					query.Predicate{Field: "total", Operator: query.OpLess, Value: ir.Int(30)},
					query.Predicate{Field: "total", Operator: query.OpGreater, Value: ir.Int(80)},
				}},
			}},
			want: []int64{12, 13},
		},
		{
			name:   "not",
			object: "orders",
			where: query.Not{Operand: query.Predicate{
				Field:    "status",
				Operator: query.OpEqual,
				Value:    ir.String("open"),
			}},
			want: []int64{11, 14},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical := mustCanonical(t, &query.Envelope{
				Object:  tt.object,
				Fields:  []query.FieldSelection{query.Scalar{Name: "id"}},
				Where:   tt.where,
				OrderBy: []query.SortSpec{{Field: "id"}},
			})
			sqlText, params, err := compiler.Compile(canonical)
			require.NoError(t, err)
			assert.Equal(t, tt.want, queryIDs(t, db, sqlText, params))
		})
	}
}

// LIKE wildcards in caller values must match literally, not as patterns.
func TestCompileLikeEscaping(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO customers VALUES (4, '100% Juice', 'west')`)
	require.NoError(t, err)

	canonical := mustCanonical(t, &query.Envelope{
		Object: "customers",
		Fields: []query.FieldSelection{query.Scalar{Name: "id"}},
		Where: query.Predicate{
			Field:    "name",
			Operator: query.OpContains,
			Value:    ir.String("0%"),
		},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, queryIDs(t, db, sqlText, params))
}

func TestCompileAggregation(t *testing.T) {
	db := openTestDB(t)
	compiler := NewCompiler()

	canonical := mustCanonical(t, &query.Envelope{
		Object:  "orders",
		Fields:  []query.FieldSelection{query.Scalar{Name: "customer_id"}},
		GroupBy: []string{"customer_id"},
		Aggregations: []query.AggregationSpec{
			{Function: query.AggCount, Alias: "n"},
			{Function: query.AggSum, Field: "total", Alias: "revenue"},
		},
		Having: query.Predicate{
			Field:    "revenue",
			Operator: query.OpGreater,
			Value:    ir.Int(100),
		},
		OrderBy: []query.SortSpec{{Field: "customer_id"}},
	})

	sqlText, params, err := compiler.Compile(canonical)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "customer_id", COUNT(*) AS "n", SUM("total") AS "revenue"`+
			` FROM "orders" GROUP BY "customer_id" HAVING "revenue" > ?`+
			` ORDER BY "customer_id" ASC`,
		sqlText)

	rows, err := db.Query(sqlText, params...)
	require.NoError(t, err)
	defer rows.Close()

	type group struct {
		customer int64
		n        int64
		revenue  float64
	}
	var got []group
	for rows.Next() {
		var g group
		require.NoError(t, rows.Scan(&g.customer, &g.n, &g.revenue))
		got = append(got, g)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []group{{1, 2, 125.0}, {2, 2, 110.0}}, got)
}

func TestCompileCountDistinct(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object: "orders",
		Aggregations: []query.AggregationSpec{
			{Function: query.AggCountDistinct, Field: "status", Alias: "statuses"},
		},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.QueryRow(sqlText, params...).Scan(&n))
	assert.Equal(t, int64(2), n)
}

func TestCompileWindowFunction(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object: "orders",
		Fields: []query.FieldSelection{query.Scalar{Name: "id"}},
		WindowFunctions: []query.WindowFunctionSpec{{
			Function: query.WinRowNumber,
			Alias:    "rn",
			Over: query.WindowSpec{
				PartitionBy: []string{"customer_id"},
				OrderBy:     []query.SortSpec{{Field: "total", Direction: query.DirectionDesc}},
			},
		}},
		OrderBy: []query.SortSpec{{Field: "id"}},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Contains(t, sqlText,
		`ROW_NUMBER() OVER (PARTITION BY "customer_id" ORDER BY "total" DESC) AS "rn"`)

	rows, err := db.Query(sqlText, params...)
	require.NoError(t, err)
	defer rows.Close()

	ranks := map[int64]int64{}
	for rows.Next() {
		var id, rn int64
		require.NoError(t, rows.Scan(&id, &rn))
		ranks[id] = rn
	}
	require.NoError(t, rows.Err())
	// Per customer, the highest total ranks first.
	assert.Equal(t, map[int64]int64{10: 2, 11: 1, 12: 2, 13: 1, 14: 1}, ranks)
}

func TestCompileWindowFrame(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object: "orders",
		Fields: []query.FieldSelection{query.Scalar{Name: "id"}},
		WindowFunctions: []query.WindowFunctionSpec{{
			Function: query.WinSum,
			Field:    "total",
			Alias:    "running",
			Over: query.WindowSpec{
				OrderBy: []query.SortSpec{{Field: "id"}},
				Frame: &query.WindowFrame{
					Mode:  query.FrameRows,
					Start: query.FrameBound{Kind: query.BoundUnboundedPreceding},
					End:   query.FrameBound{Kind: query.BoundCurrentRow},
				},
			},
		}},
		OrderBy: []query.SortSpec{{Field: "id"}},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW")

	rows, err := db.Query(sqlText, params...)
	require.NoError(t, err)
	defer rows.Close()

	var totals []float64
	for rows.Next() {
		var id int64
		var running float64
		require.NoError(t, rows.Scan(&id, &running))
		totals = append(totals, running)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []float64{50, 125, 145, 235, 245}, totals)
}

func TestCompileJoin(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object: "orders",
		Fields: []query.FieldSelection{query.Scalar{Name: "orders.id"}},
		Joins: []query.JoinSpec{{
			Type:   query.JoinLeft,
			Target: query.ObjectRef("customers"),
			Alias:  "c",
			On: query.Predicate{
				Field:    "c.id",
				Operator: query.OpEqual,
				Value:    ir.String("orders.customer_id"),
			},
		}},
		Where: query.Predicate{
			Field:    "c.region",
			Operator: query.OpEqual,
			Value:    ir.String("east"),
		},
		OrderBy: []query.SortSpec{{Field: "orders.id"}},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	// A qualified path on the right-hand side of an ON predicate compiles to
	// a column reference, not a bound parameter.
	assert.Contains(t, sqlText, `LEFT JOIN "customers" AS "c" ON "c"."id" = "orders"."customer_id"`)

	assert.Equal(t, []int64{12, 13}, queryIDs(t, db, sqlText, params))
}

func TestCompileSubqueryJoin(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object: "customers",
		Fields: []query.FieldSelection{query.Scalar{Name: "customers.id"}},
		Joins: []query.JoinSpec{{
			Type: query.JoinInner,
			Target: query.Subquery{Query: &query.Envelope{
				Object: "orders",
				Fields: []query.FieldSelection{query.Scalar{Name: "customer_id"}},
				Where: query.Predicate{
					Field:    "status",
					Operator: query.OpEqual,
					Value:    ir.String("shipped"),
				},
			}},
			Alias: "shipped",
			On: query.Predicate{
				Field:    "shipped.customer_id",
				Operator: query.OpEqual,
				Value:    ir.String("customers.id"),
			},
		}},
		OrderBy: []query.SortSpec{{Field: "customers.id"}},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Contains(t, sqlText,
		`INNER JOIN (SELECT "customer_id" FROM "orders" WHERE "status" = ?) AS "shipped"`)

	assert.Equal(t, []int64{1, 3}, queryIDs(t, db, sqlText, params))
}

func TestCompileCursorPagination(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object:  "orders",
		Fields:  []query.FieldSelection{query.Scalar{Name: "id"}},
		OrderBy: []query.SortSpec{{Field: "id"}},
		Cursor: &query.CursorPagination{
			Cursor: ir.Map{"id": ir.Int(11)},
			Limit:  int64ptr(2),
		},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "orders" WHERE "id" > ? ORDER BY "id" ASC LIMIT ?`, sqlText)
	assert.Equal(t, []int64{12, 13}, queryIDs(t, db, sqlText, params))
}

func TestCompileCursorDescending(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object:  "orders",
		Fields:  []query.FieldSelection{query.Scalar{Name: "id"}},
		OrderBy: []query.SortSpec{{Field: "id", Direction: query.DirectionDesc}},
		Cursor: &query.CursorPagination{
			Cursor: ir.Map{"id": ir.Int(13)},
			Limit:  int64ptr(2),
		},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Contains(t, sqlText, `"id" < ?`)
	assert.Equal(t, []int64{12, 11}, queryIDs(t, db, sqlText, params))
}

// Limit 0 is a valid query that returns zero rows, distinct from omitting
// the limit entirely.
func TestCompileLimitZero(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object: "orders",
		Fields: []query.FieldSelection{query.Scalar{Name: "id"}},
		Offset: &query.OffsetPagination{Limit: int64ptr(0)},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Empty(t, queryIDs(t, db, sqlText, params))
}

func TestCompileOffsetWithoutLimit(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object:  "orders",
		Fields:  []query.FieldSelection{query.Scalar{Name: "id"}},
		OrderBy: []query.SortSpec{{Field: "id"}},
		Offset:  &query.OffsetPagination{Offset: int64ptr(3)},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "LIMIT -1 OFFSET ?")
	assert.Equal(t, []int64{13, 14}, queryIDs(t, db, sqlText, params))
}

func TestCompileDistinct(t *testing.T) {
	db := openTestDB(t)

	canonical := mustCanonical(t, &query.Envelope{
		Object:   "orders",
		Fields:   []query.FieldSelection{query.Scalar{Name: "customer_id"}},
		Distinct: true,
		OrderBy:  []query.SortSpec{{Field: "customer_id"}},
	})

	sqlText, params, err := NewCompiler().Compile(canonical)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, queryIDs(t, db, sqlText, params))
}

func TestCompileRelationSelectionRejected(t *testing.T) {
	canonical := mustCanonical(t, &query.Envelope{
		Object: "customers",
		Fields: []query.FieldSelection{
			query.Relation{Name: "orders", SubSelections: []query.FieldSelection{
				query.Scalar{Name: "id"},
			}},
		},
	})

	_, _, err := NewCompiler().Compile(canonical)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation selections")
}

func TestCompileNilQuery(t *testing.T) {
	_, _, err := NewCompiler().Compile(nil)
	require.Error(t, err)
}
