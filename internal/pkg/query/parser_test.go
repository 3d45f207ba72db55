package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Operation
	}{
		{name: "select all", in: "supabase.from('employees').select('*')",
			want: &Operation{Kind: Select, Table: "employees"}},
		{name: "select columns", in: "supabase.from('employees').select('id, name')",
			want: &Operation{Kind: Select, Table: "employees", Columns: []string{"id", "name"}}},
		{name: "eq", in: "supabase.from('employees').select('*').eq('id', 5)",
			want: &Operation{Kind: Select, Table: "employees", Filters: []Filter{{Column: "id", Op: OpEq, Value: int64(5)}}}},
		{name: "order limit", in: "supabase.from('employees').select('*').order('salary', { ascending: false }).limit(1)",
			want: &Operation{Kind: Select, Table: "employees", Order: []Order{{Column: "salary"}}, Limit: 1}},
		{name: "order default", in: "supabase.from('employees').select().order('age')",
			want: &Operation{Kind: Select, Table: "employees", Order: []Order{{Column: "age", Ascending: true}}}},
		{name: "ilike", in: `supabase.from("employees").select("*").ilike("name", "J%")`,
			want: &Operation{Kind: Select, Table: "employees", Filters: []Filter{{Column: "name", Op: OpILike, Value: "J%"}}}},
		{name: "not is null", in: "supabase.from('refund_requests').select('*').not('summary', 'is', null)",
			want: &Operation{Kind: Select, Table: "refund_requests", Filters: []Filter{{Column: "summary", Op: OpIs, Value: nil, Not: true}}}},
		{name: "in", in: "supabase.from('employees').select('*').in('id', [1, 2,])",
			want: &Operation{Kind: Select, Table: "employees", Filters: []Filter{{Column: "id", Op: OpIn, Value: []interface{}{int64(1), int64(2)}}}}},
		{name: "insert", in: "supabase.from('employees').insert([{ name: 'John Doe', age: 30, salary: 50000 }])",
			want: &Operation{Kind: Insert, Table: "employees",
				Rows: []map[string]interface{}{{"name": "John Doe", "age": int64(30), "salary": int64(50000)}}}},
		{name: "insert object", in: "supabase.from('refund_requests').insert({ 'name': 'Alice', amount: 75.50 }).select()",
			want: &Operation{Kind: Insert, Table: "refund_requests",
				Rows: []map[string]interface{}{{"name": "Alice", "amount": 75.5}}}},
		{name: "update", in: "await supabase.from('employees').update({ age: 35 }).eq('id', 5);",
			want: &Operation{Kind: Update, Table: "employees", Patch: map[string]interface{}{"age": int64(35)},
				Filters: []Filter{{Column: "id", Op: OpEq, Value: int64(5)}}}},
		{name: "negative", in: "supabase.from('employees').update({ salary: -1.5e2 }).match({ name: 'It\\'s', id: 3 })",
			want: &Operation{Kind: Update, Table: "employees", Patch: map[string]interface{}{"salary": -150.0},
				Filters: []Filter{{Column: "id", Op: OpEq, Value: int64(3)}, {Column: "name", Op: OpEq, Value: "It's"}}}},
		{name: "delete", in: "supabase.from('refund_requests').delete().eq('id', 7)",
			want: &Operation{Kind: Delete, Table: "refund_requests", Filters: []Filter{{Column: "id", Op: OpEq, Value: int64(7)}}}},
		{name: "default table", in: "supabase.select('*').gte('age', 30)",
			want: &Operation{Kind: Select, Table: "employees", Filters: []Filter{{Column: "age", Op: OpGte, Value: int64(30)}}}},
		{name: "spaces", in: "\n supabase\n  .from('employees')\n  .select('*')\n",
			want: &Operation{Kind: Select, Table: "employees"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)

			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Fail(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "other object", in: "db.from('employees').select('*')"},
		{name: "no op", in: "supabase.from('employees')"},
		{name: "function", in: "(async () => { return supabase.from('employees').select('*') })()"},
		{name: "arrow", in: "supabase.from('employees').select('*').then(r => r)"},
		{name: "unknown method", in: "supabase.from('employees').rpc('drop')"},
		{name: "rpc", in: "supabase.rpc('drop_all')"},
		{name: "two ops", in: "supabase.from('employees').delete().update({ age: 1 })"},
		{name: "trailing", in: "supabase.from('employees').select('*'); process.exit()"},
		{name: "variable", in: "supabase.from('employees').select('*').eq('id', nextId)"},
		{name: "template", in: "supabase.from(`employees`).select('*')"},
		{name: "comment", in: "supabase.from('employees').select('*') // all"},
		{name: "unterminated", in: "supabase.from('employees).select('*')"},
		{name: "bad table", in: "supabase.from('employees; drop table x').select('*')"},
		{name: "bad columns", in: "supabase.from('employees').select('id, pg_sleep(1)')"},
		{name: "filter before op", in: "supabase.from('employees').eq('id', 1).select('*')"},
		{name: "insert filter", in: "supabase.from('employees').insert({ age: 1 }).eq('id', 1)"},
		{name: "limit on delete", in: "supabase.from('employees').delete().eq('id', 1).limit(1)"},
		{name: "bad order option", in: "supabase.from('employees').select('*').order('age', { foreignTable: 'x' })"},
		{name: "duplicate key", in: "supabase.from('employees').update({ age: 1, age: 2 }).eq('id', 1)"},
		{name: "from twice", in: "supabase.from('employees').from('refund_requests').select('*')"},
		{name: "bad number", in: "supabase.from('employees').select('*').eq('id', 1.2.3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)

			assert.Nil(t, got)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}
