package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) Schema {
	t.Helper()
	cat, err := DefaultCatalog()
	require.Nil(t, err)
	return cat.Schema()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		op      *Operation
		wantErr bool
	}{
		{name: "select", op: &Operation{Kind: Select, Table: "employees"}},
		{name: "select cols", op: &Operation{Kind: Select, Table: "refund_requests", Columns: []string{"id", "summary"},
			Filters: []Filter{{Column: "summary", Op: OpIs, Not: true}}, Order: []Order{{Column: "amount"}}}},
		{name: "insert", op: &Operation{Kind: Insert, Table: "employees",
			Rows: []map[string]interface{}{{"name": "a", "salary": 1.5}}}},
		{name: "update", op: &Operation{Kind: Update, Table: "employees", Patch: map[string]interface{}{"age": int64(3)},
			Filters: []Filter{{Column: "id", Op: OpEq, Value: int64(1)}}}},
		{name: "delete in", op: &Operation{Kind: Delete, Table: "employees",
			Filters: []Filter{{Column: "id", Op: OpIn, Value: []interface{}{int64(1)}}}}},
		{name: "unknown table", op: &Operation{Kind: Select, Table: "users"}, wantErr: true},
		{name: "unknown column", op: &Operation{Kind: Select, Table: "employees", Columns: []string{"pwd"}}, wantErr: true},
		{name: "unknown filter column", op: &Operation{Kind: Select, Table: "employees",
			Filters: []Filter{{Column: "x", Op: OpEq, Value: int64(1)}}}, wantErr: true},
		{name: "unknown order", op: &Operation{Kind: Select, Table: "employees", Order: []Order{{Column: "x"}}}, wantErr: true},
		{name: "eq null", op: &Operation{Kind: Select, Table: "employees",
			Filters: []Filter{{Column: "name", Op: OpEq}}}, wantErr: true},
		{name: "like number", op: &Operation{Kind: Select, Table: "employees",
			Filters: []Filter{{Column: "age", Op: OpLike, Value: "1%"}}}, wantErr: true},
		{name: "in empty", op: &Operation{Kind: Select, Table: "employees",
			Filters: []Filter{{Column: "id", Op: OpIn, Value: []interface{}{}}}}, wantErr: true},
		{name: "is string", op: &Operation{Kind: Select, Table: "employees",
			Filters: []Filter{{Column: "name", Op: OpIs, Value: "a"}}}, wantErr: true},
		{name: "id float", op: &Operation{Kind: Select, Table: "employees",
			Filters: []Filter{{Column: "id", Op: OpEq, Value: 1.5}}}, wantErr: true},
		{name: "insert empty", op: &Operation{Kind: Insert, Table: "employees"}, wantErr: true},
		{name: "insert empty row", op: &Operation{Kind: Insert, Table: "employees",
			Rows: []map[string]interface{}{{}}}, wantErr: true},
		{name: "insert wrong col", op: &Operation{Kind: Insert, Table: "employees",
			Rows: []map[string]interface{}{{"pwd": "a"}}}, wantErr: true},
		{name: "update no filter", op: &Operation{Kind: Update, Table: "employees",
			Patch: map[string]interface{}{"age": int64(3)}}, wantErr: true},
		{name: "update empty", op: &Operation{Kind: Update, Table: "employees",
			Filters: []Filter{{Column: "id", Op: OpEq, Value: int64(1)}}}, wantErr: true},
		{name: "delete no filter", op: &Operation{Kind: Delete, Table: "employees"}, wantErr: true},
		{name: "limit", op: &Operation{Kind: Select, Table: "employees", Limit: -1}, wantErr: true},
		{name: "kind", op: &Operation{Kind: "drop", Table: "employees"}, wantErr: true},
	}
	schema := testSchema(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate(schema)
			assert.Equal(t, tt.wantErr, err != nil, "err %v", err)
		})
	}
}

func TestOperation_String(t *testing.T) {
	op := &Operation{Kind: Delete, Table: "employees", Filters: []Filter{{Column: "id", Op: OpEq},
		{Column: "summary", Op: OpIs, Not: true}}}
	assert.Equal(t, "delete employees eq(id) not is(summary)", op.String())
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]interface{}{"c": 1, "a": 2, "b": 3}))
}
