package query

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is a database operation type
type Kind string

const (
	// Select reads rows
	Select Kind = "select"
	// Insert adds rows
	Insert Kind = "insert"
	// Update changes filtered rows
	Update Kind = "update"
	// Delete removes filtered rows
	Delete Kind = "delete"
)

// Op is a filter operator
type Op string

// supported filter operators
const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
	OpIs    Op = "is"
	OpIn    Op = "in"
)

var filterOps = map[string]Op{"eq": OpEq, "neq": OpNeq, "gt": OpGt, "gte": OpGte, "lt": OpLt, "lte": OpLte,
	"like": OpLike, "ilike": OpILike, "is": OpIs, "in": OpIn}

// Filter is one predicate, predicates are joined with AND
type Filter struct {
	Column string
	Op     Op
	Value  interface{}
	Not    bool
}

// Order is a sort clause
type Order struct {
	Column    string
	Ascending bool
}

// Operation is a validated-to-be database operation produced from model output
type Operation struct {
	Kind    Kind
	Table   string
	Columns []string
	Filters []Filter
	Order   []Order
	Limit   int
	Rows    []map[string]interface{}
	Patch   map[string]interface{}
}

// Validate checks the operation against the schema
func (o *Operation) Validate(schema Schema) error {
	t, ok := schema[o.Table]
	if !ok {
		return fmt.Errorf("unknown table '%s'", o.Table)
	}
	for _, c := range o.Columns {
		if _, ok := t[c]; !ok {
			return fmt.Errorf("unknown column '%s.%s'", o.Table, c)
		}
	}
	for _, f := range o.Filters {
		ct, ok := t[f.Column]
		if !ok {
			return fmt.Errorf("unknown column '%s.%s'", o.Table, f.Column)
		}
		if err := validateFilter(ct, f); err != nil {
			return fmt.Errorf("wrong filter on '%s': %w", f.Column, err)
		}
	}
	for _, or := range o.Order {
		if _, ok := t[or.Column]; !ok {
			return fmt.Errorf("unknown order column '%s.%s'", o.Table, or.Column)
		}
	}
	if o.Limit < 0 {
		return fmt.Errorf("wrong limit %d", o.Limit)
	}
	switch o.Kind {
	case Select:
	case Insert:
		if len(o.Rows) == 0 {
			return fmt.Errorf("no rows to insert")
		}
		for _, r := range o.Rows {
			if len(r) == 0 {
				return fmt.Errorf("empty row to insert")
			}
			if err := validateValues(t, o.Table, r); err != nil {
				return err
			}
		}
	case Update:
		if len(o.Patch) == 0 {
			return fmt.Errorf("no values to update")
		}
		if err := validateValues(t, o.Table, o.Patch); err != nil {
			return err
		}
		if len(o.Filters) == 0 {
			return fmt.Errorf("update without filter is not allowed")
		}
	case Delete:
		if len(o.Filters) == 0 {
			return fmt.Errorf("delete without filter is not allowed")
		}
	default:
		return fmt.Errorf("unknown operation '%s'", o.Kind)
	}
	return nil
}

func validateValues(t Table, table string, values map[string]interface{}) error {
	for k, v := range values {
		ct, ok := t[k]
		if !ok {
			return fmt.Errorf("unknown column '%s.%s'", table, k)
		}
		if err := checkType(ct, v); err != nil {
			return fmt.Errorf("wrong value for '%s': %w", k, err)
		}
	}
	return nil
}

func validateFilter(ct ColumnType, f Filter) error {
	switch f.Op {
	case OpIs:
		if f.Value == nil {
			return nil
		}
		if _, ok := f.Value.(bool); ok {
			return nil
		}
		return fmt.Errorf("is expects null or boolean")
	case OpLike, OpILike:
		if _, ok := f.Value.(string); !ok || ct != TypeText {
			return fmt.Errorf("%s expects text column and string pattern", f.Op)
		}
		return nil
	case OpIn:
		arr, ok := f.Value.([]interface{})
		if !ok || len(arr) == 0 {
			return fmt.Errorf("in expects non empty list")
		}
		for _, v := range arr {
			if err := checkType(ct, v); err != nil || v == nil {
				return fmt.Errorf("wrong list value %v", v)
			}
		}
		return nil
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		if f.Value == nil {
			return fmt.Errorf("%s null, use is", f.Op)
		}
		return checkType(ct, f.Value)
	}
	return fmt.Errorf("unknown operator '%s'", f.Op)
}

func checkType(ct ColumnType, v interface{}) error {
	if v == nil {
		return nil
	}
	switch ct {
	case TypeInteger:
		if _, ok := v.(int64); ok {
			return nil
		}
	case TypeNumeric:
		switch v.(type) {
		case int64, float64:
			return nil
		}
	case TypeText, TypeTimestamp:
		if _, ok := v.(string); ok {
			return nil
		}
	}
	return fmt.Errorf("value %v does not fit %s", v, ct)
}

// String returns a short description used in logs
func (o *Operation) String() string {
	sb := strings.Builder{}
	sb.WriteString(string(o.Kind))
	sb.WriteString(" ")
	sb.WriteString(o.Table)
	for _, f := range o.Filters {
		not := ""
		if f.Not {
			not = "not "
		}
		sb.WriteString(fmt.Sprintf(" %s%s(%s)", not, f.Op, f.Column))
	}
	return sb.String()
}

// SortedKeys returns map keys in a stable order
func SortedKeys(m map[string]interface{}) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
