package query

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnType is a column value kind
type ColumnType string

// column types known to the compiler
const (
	TypeInteger   ColumnType = "integer"
	TypeNumeric   ColumnType = "numeric"
	TypeText      ColumnType = "text"
	TypeTimestamp ColumnType = "timestamp"
)

// Table maps column name to its type
type Table map[string]ColumnType

// Schema lists tables allowed for queries
type Schema map[string]Table

// Catalog is the few-shot prompt definition
type Catalog struct {
	Intro    string         `yaml:"intro"`
	Tables   []TableDef     `yaml:"tables"`
	Guidance string         `yaml:"guidance"`
	Examples []ExampleGroup `yaml:"examples"`
	Outro    string         `yaml:"outro"`
}

// TableDef describes a table in the catalog
type TableDef struct {
	Name    string      `yaml:"name"`
	Columns []ColumnDef `yaml:"columns"`
}

// ColumnDef describes a column in the catalog
type ColumnDef struct {
	Name string     `yaml:"name"`
	Type ColumnType `yaml:"type"`
	Note string     `yaml:"note"`
}

// ExampleGroup is a titled list of examples
type ExampleGroup struct {
	Section string    `yaml:"section"`
	Items   []Example `yaml:"items"`
}

// Example is one natural language query and the expected code
type Example struct {
	Query string `yaml:"query"`
	Code  string `yaml:"code"`
}

//go:embed prompt.yaml
var defaultCatalog []byte

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog parses yaml catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var res Catalog
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("can't parse catalog: %w", err)
	}
	if len(res.Tables) == 0 {
		return nil, fmt.Errorf("no tables in catalog")
	}
	for _, t := range res.Tables {
		for _, c := range t.Columns {
			switch c.Type {
			case TypeInteger, TypeNumeric, TypeText, TypeTimestamp:
			default:
				return nil, fmt.Errorf("unknown type '%s' of %s.%s", c.Type, t.Name, c.Name)
			}
		}
	}
	return &res, nil
}

// Schema returns the table whitelist
func (c *Catalog) Schema() Schema {
	res := Schema{}
	for _, t := range c.Tables {
		tbl := Table{}
		for _, col := range t.Columns {
			tbl[col.Name] = col.Type
		}
		res[t.Name] = tbl
	}
	return res
}

// Prompt renders the system prompt
func (c *Catalog) Prompt() string {
	sb := &strings.Builder{}
	sb.WriteString(c.Intro)
	sb.WriteString("\nThe database has the following tables:\n")
	for i, t := range c.Tables {
		fmt.Fprintf(sb, "\n%d. \"%s\" table with columns:\n", i+1, t.Name)
		for _, col := range t.Columns {
			if col.Note != "" {
				fmt.Fprintf(sb, "- %s (%s, %s)\n", col.Name, col.Type, col.Note)
			} else {
				fmt.Fprintf(sb, "- %s (%s)\n", col.Name, col.Type)
			}
		}
	}
	sb.WriteString("\n")
	sb.WriteString(c.Guidance)
	sb.WriteString("\nHere are some examples of natural language queries and their corresponding Supabase queries:\n")
	for _, g := range c.Examples {
		fmt.Fprintf(sb, "\n// %s\n", g.Section)
		for _, e := range g.Items {
			fmt.Fprintf(sb, "Natural Language Query: \"%s\"\nSupabase Query: %s\n\n", e.Query, e.Code)
		}
	}
	sb.WriteString(c.Outro)
	return sb.String()
}
