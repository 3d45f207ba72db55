package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/query"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs validated query operations with parameterized SQL
type Executor struct {
	pool   *pgxpool.Pool
	schema query.Schema
}

// NewExecutor creates executor, only tables of the schema are accessible
func NewExecutor(pool *pgxpool.Pool, schema query.Schema) (*Executor, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("no schema")
	}
	return &Executor{pool: pool, schema: schema}, nil
}

// Execute runs the operation, returns selected or affected rows
func (e *Executor) Execute(ctx context.Context, op *query.Operation) ([]map[string]interface{}, error) {
	if err := op.Validate(e.schema); err != nil {
		return nil, fmt.Errorf("query rejected: %w", err)
	}
	sql, args, err := Build(op, e.schema[op.Table])
	if err != nil {
		return nil, err
	}
	goapp.Log.Debug().Str("sql", sql).Int("args", len(args)).Msg("exec")
	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, utils.NewErrDatabase(op.String(), err)
	}
	defer rows.Close()
	res := []map[string]interface{}{}
	fields := rows.FieldDescriptions()
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, utils.NewErrDatabase(op.String(), err)
		}
		m := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			m[f.Name] = vals[i]
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewErrDatabase(op.String(), err)
	}
	return res, nil
}

type builder struct {
	table query.Table
	args  []interface{}
}

// Build makes SQL for a validated operation
func Build(op *query.Operation, table query.Table) (string, []interface{}, error) {
	if table == nil {
		return "", nil, fmt.Errorf("no table '%s'", op.Table)
	}
	b := &builder{table: table}
	sb := &strings.Builder{}
	switch op.Kind {
	case query.Select:
		fmt.Fprintf(sb, "SELECT %s FROM %s", b.columns(op.Columns), ident(op.Table))
		sb.WriteString(b.where(op.Filters))
		for i, o := range op.Order {
			if i == 0 {
				sb.WriteString(" ORDER BY ")
			} else {
				sb.WriteString(", ")
			}
			if o.Ascending {
				fmt.Fprintf(sb, "%s ASC", ident(o.Column))
			} else {
				fmt.Fprintf(sb, "%s DESC NULLS LAST", ident(o.Column))
			}
		}
		if op.Limit > 0 {
			fmt.Fprintf(sb, " LIMIT %d", op.Limit)
		}
	case query.Insert:
		fmt.Fprintf(sb, "INSERT INTO %s", ident(op.Table))
		sb.WriteString(b.values(op.Table, op.Rows))
		fmt.Fprintf(sb, " RETURNING %s", b.columns(nil))
	case query.Update:
		fmt.Fprintf(sb, "UPDATE %s SET ", ident(op.Table))
		for i, k := range query.SortedKeys(op.Patch) {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s = %s", ident(k), b.arg(k, op.Patch[k]))
		}
		sb.WriteString(b.where(op.Filters))
		fmt.Fprintf(sb, " RETURNING %s", b.columns(nil))
	case query.Delete:
		fmt.Fprintf(sb, "DELETE FROM %s", ident(op.Table))
		sb.WriteString(b.where(op.Filters))
		fmt.Fprintf(sb, " RETURNING %s", b.columns(nil))
	default:
		return "", nil, fmt.Errorf("unknown operation '%s'", op.Kind)
	}
	return sb.String(), b.args, nil
}

func (b *builder) columns(cols []string) string {
	if len(cols) == 0 {
		for c := range b.table {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		// id first
		for i, c := range cols {
			if c == "id" {
				cols = append(append([]string{"id"}, cols[:i]...), cols[i+1:]...)
				break
			}
		}
	}
	res := make([]string, 0, len(cols))
	for _, c := range cols {
		if b.table[c] == query.TypeNumeric {
			res = append(res, fmt.Sprintf("%s::float8 AS %s", ident(c), ident(c)))
		} else {
			res = append(res, ident(c))
		}
	}
	return strings.Join(res, ", ")
}

func (b *builder) where(filters []query.Filter) string {
	if len(filters) == 0 {
		return ""
	}
	res := make([]string, 0, len(filters))
	for _, f := range filters {
		var expr string
		c := ident(f.Column)
		switch f.Op {
		case query.OpIs:
			switch f.Value {
			case true:
				expr = c + " IS TRUE"
			case false:
				expr = c + " IS FALSE"
			default:
				expr = c + " IS NULL"
			}
		case query.OpIn:
			parts := []string{}
			for _, v := range f.Value.([]interface{}) {
				parts = append(parts, b.arg(f.Column, v))
			}
			expr = fmt.Sprintf("%s IN (%s)", c, strings.Join(parts, ", "))
		default:
			expr = fmt.Sprintf("%s %s %s", c, sqlOps[f.Op], b.arg(f.Column, f.Value))
		}
		if f.Not {
			expr = "NOT (" + expr + ")"
		}
		res = append(res, expr)
	}
	return " WHERE " + strings.Join(res, " AND ")
}

var sqlOps = map[query.Op]string{query.OpEq: "=", query.OpNeq: "<>", query.OpGt: ">", query.OpGte: ">=",
	query.OpLt: "<", query.OpLte: "<=", query.OpLike: "LIKE", query.OpILike: "ILIKE"}

// values builds insert values, a missing id gets max(id) + n
func (b *builder) values(table string, rows []map[string]interface{}) string {
	keys := map[string]bool{}
	for _, r := range rows {
		for k := range r {
			keys[k] = true
		}
	}
	_, hasID := b.table["id"]
	if hasID {
		keys["id"] = true
	}
	cols := make([]string, 0, len(keys))
	for k := range keys {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	sb := &strings.Builder{}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, ident(c))
	}
	fmt.Fprintf(sb, " (%s) VALUES ", strings.Join(names, ", "))
	next := 0
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		vals := make([]string, 0, len(cols))
		for _, c := range cols {
			v, ok := r[c]
			switch {
			case ok:
				vals = append(vals, b.arg(c, v))
			case c == "id":
				next++
				vals = append(vals, fmt.Sprintf("(SELECT COALESCE(MAX(id), 0) + %d FROM %s)", next, ident(table)))
			default:
				vals = append(vals, "DEFAULT")
			}
		}
		fmt.Fprintf(sb, "(%s)", strings.Join(vals, ", "))
	}
	return sb.String()
}

func (b *builder) arg(col string, v interface{}) string {
	b.args = append(b.args, v)
	p := fmt.Sprintf("$%d", len(b.args))
	if b.table[col] == query.TypeTimestamp {
		return fmt.Sprintf("CAST(%s::text AS timestamptz)", p)
	}
	return p
}

func ident(s string) string {
	return pgx.Identifier{s}.Sanitize()
}
