package utils

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSQLStr(t *testing.T) {
	tests := []struct {
		name string
		args string
		want sql.NullString
	}{
		{name: "empty", args: "", want: sql.NullString{}},
		{name: "spaces", args: "  ", want: sql.NullString{String: "  "}},
		{name: "non empty", args: "database_query", want: sql.NullString{String: "database_query", Valid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToSQLStr(tt.args))
		})
	}
}

func TestFromSQLStrOr(t *testing.T) {
	tests := []struct {
		name string
		args sql.NullString
		def  string
		want string
	}{
		{name: "null", args: sql.NullString{}, def: "a@b.c", want: "a@b.c"},
		{name: "blank", args: sql.NullString{String: " ", Valid: true}, def: "a@b.c", want: "a@b.c"},
		{name: "value", args: sql.NullString{String: "olia@o.o", Valid: true}, def: "a@b.c", want: "olia@o.o"},
		{name: "invalid with value", args: sql.NullString{String: "olia@o.o"}, def: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromSQLStrOr(tt.args, tt.def))
		})
	}
}

func TestFromSQLStr(t *testing.T) {
	assert.Equal(t, "", FromSQLStr(sql.NullString{}))
	assert.Equal(t, "Jonas", FromSQLStr(sql.NullString{String: "Jonas", Valid: true}))
}

func TestFromSQLFloat(t *testing.T) {
	v := 12.5
	assert.Equal(t, 12.5, FromSQLFloat(&v))
	assert.Equal(t, 0.0, FromSQLFloat(nil))
}
