package utils

import (
	"database/sql"
	"strings"
)

// ToSQLStr creates a nullable string, blank strings are stored as NULL
func ToSQLStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

// FromSQLStr returns string from sql.NullString
func FromSQLStr(sqlStr sql.NullString) string {
	return FromSQLStrOr(sqlStr, "")
}

// FromSQLStrOr returns the value or def if it is NULL or blank
func FromSQLStrOr(sqlStr sql.NullString, def string) string {
	if sqlStr.Valid && strings.TrimSpace(sqlStr.String) != "" {
		return sqlStr.String
	}
	return def
}

// FromSQLFloat returns the value of a nullable numeric column, 0 for NULL
func FromSQLFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
