package postgres

import (
	"testing"

	"github.com/airenas/supaquery/internal/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTable = query.Table{"id": query.TypeInteger, "name": query.TypeText, "age": query.TypeNumeric,
	"created": query.TypeTimestamp}

const allCols = `"id", "age"::float8 AS "age", "created", "name"`

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		op       *query.Operation
		wantSQL  string
		wantArgs []interface{}
	}{
		{name: "select all", op: &query.Operation{Kind: query.Select, Table: "employees"},
			wantSQL: `SELECT ` + allCols + ` FROM "employees"`},
		{name: "select", op: &query.Operation{Kind: query.Select, Table: "employees", Columns: []string{"name", "age"},
			Filters: []query.Filter{{Column: "age", Op: query.OpGt, Value: int64(30)},
				{Column: "name", Op: query.OpILike, Value: "J%"}},
			Order: []query.Order{{Column: "age"}, {Column: "name", Ascending: true}}, Limit: 1},
			wantSQL: `SELECT "name", "age"::float8 AS "age" FROM "employees" WHERE "age" > $1 AND "name" ILIKE $2` +
				` ORDER BY "age" DESC NULLS LAST, "name" ASC LIMIT 1`,
			wantArgs: []interface{}{int64(30), "J%"}},
		{name: "is not null", op: &query.Operation{Kind: query.Select, Table: "t", Columns: []string{"id"},
			Filters: []query.Filter{{Column: "name", Op: query.OpIs, Not: true}}},
			wantSQL: `SELECT "id" FROM "t" WHERE NOT ("name" IS NULL)`},
		{name: "is true", op: &query.Operation{Kind: query.Select, Table: "t", Columns: []string{"id"},
			Filters: []query.Filter{{Column: "name", Op: query.OpIs, Value: true}}},
			wantSQL: `SELECT "id" FROM "t" WHERE "name" IS TRUE`},
		{name: "in", op: &query.Operation{Kind: query.Select, Table: "t", Columns: []string{"id"},
			Filters: []query.Filter{{Column: "id", Op: query.OpIn, Value: []interface{}{int64(1), int64(2)}}}},
			wantSQL:  `SELECT "id" FROM "t" WHERE "id" IN ($1, $2)`,
			wantArgs: []interface{}{int64(1), int64(2)}},
		{name: "timestamp", op: &query.Operation{Kind: query.Select, Table: "t", Columns: []string{"id"},
			Filters: []query.Filter{{Column: "created", Op: query.OpLt, Value: "2024-01-01"}}},
			wantSQL:  `SELECT "id" FROM "t" WHERE "created" < CAST($1::text AS timestamptz)`,
			wantArgs: []interface{}{"2024-01-01"}},
		{name: "insert", op: &query.Operation{Kind: query.Insert, Table: "employees",
			Rows: []map[string]interface{}{{"name": "a", "age": int64(3)}, {"name": "b", "id": int64(10)}, {"name": "c"}}},
			wantSQL: `INSERT INTO "employees" ("age", "id", "name") VALUES ` +
				`($1, (SELECT COALESCE(MAX(id), 0) + 1 FROM "employees"), $2), ` +
				`(DEFAULT, $3, $4), ` +
				`(DEFAULT, (SELECT COALESCE(MAX(id), 0) + 2 FROM "employees"), $5) RETURNING ` + allCols,
			wantArgs: []interface{}{int64(3), "a", int64(10), "b", "c"}},
		{name: "update", op: &query.Operation{Kind: query.Update, Table: "employees",
			Patch:   map[string]interface{}{"name": "x", "age": 1.5},
			Filters: []query.Filter{{Column: "id", Op: query.OpEq, Value: int64(5)}}},
			wantSQL:  `UPDATE "employees" SET "age" = $1, "name" = $2 WHERE "id" = $3 RETURNING ` + allCols,
			wantArgs: []interface{}{1.5, "x", int64(5)}},
		{name: "delete", op: &query.Operation{Kind: query.Delete, Table: "employees",
			Filters: []query.Filter{{Column: "id", Op: query.OpNeq, Value: int64(7)}}},
			wantSQL:  `DELETE FROM "employees" WHERE "id" <> $1 RETURNING ` + allCols,
			wantArgs: []interface{}{int64(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := Build(tt.op, testTable)

			require.Nil(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuild_Fail(t *testing.T) {
	_, _, err := Build(&query.Operation{Kind: "drop", Table: "t"}, testTable)
	assert.NotNil(t, err)
	_, _, err = Build(&query.Operation{Kind: query.Select, Table: "t"}, nil)
	assert.NotNil(t, err)
}

func TestIdent(t *testing.T) {
	assert.Equal(t, `"a""b"`, ident(`a"b`))
}

func TestNewExecutor_Fail(t *testing.T) {
	_, err := NewExecutor(nil, query.Schema{"t": testTable})
	assert.NotNil(t, err)
}
