package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := DefaultCatalog()

	require.Nil(t, err)
	s := cat.Schema()
	assert.Equal(t, TypeNumeric, s["employees"]["salary"])
	assert.Equal(t, TypeText, s["refund_requests"]["summary"])
	assert.Equal(t, TypeInteger, s["refund_requests"]["id"])
	assert.Equal(t, 2, len(s))
}

func TestPrompt(t *testing.T) {
	cat, err := DefaultCatalog()
	require.Nil(t, err)

	p := cat.Prompt()

	assert.Contains(t, p, "1. \"employees\" table with columns:\n- id (integer, primary key)\n- name (text)")
	assert.Contains(t, p, "2. \"refund_requests\" table with columns:")
	assert.Contains(t, p, "// DELETE Operations\nNatural Language Query: \"Delete employee with ID 5\"\n"+
		"Supabase Query: supabase.from('employees').delete().eq('id', 5)\n")
	assert.Contains(t, p, "No markdown, no comments, just the executable code.")
}

func TestPrompt_ExamplesParse(t *testing.T) {
	cat, err := DefaultCatalog()
	require.Nil(t, err)
	schema := cat.Schema()
	for _, g := range cat.Examples {
		for _, e := range g.Items {
			op, err := Parse(e.Code)
			require.Nil(t, err, e.Code)
			assert.Nil(t, op.Validate(schema), e.Code)
		}
	}
}

func TestParseCatalog_Fail(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "yaml", in: "tables: [a"},
		{name: "no tables", in: "intro: olia"},
		{name: "type", in: "tables:\n  - name: a\n    columns:\n      - {name: b, type: blob}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.in))
			assert.NotNil(t, err)
		})
	}
}
