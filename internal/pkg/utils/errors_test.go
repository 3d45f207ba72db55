package utils

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrNetworkTimeout_Error(t *testing.T) {
	assert.Equal(t, "network timeout: olia", NewErrNetworkTimeout(errors.New("olia")).Error())
}

func TestErrNetworkTimeout_Unwrap(t *testing.T) {
	assert.True(t, errors.Is(NewErrNetworkTimeout(io.EOF), io.EOF))
}

func TestErrHTTP_Error(t *testing.T) {
	assert.Equal(t, "HTTP error 404", (&ErrHTTP{Code: 404}).Error())
	assert.Equal(t, "HTTP error 429: slow down", (&ErrHTTP{Code: 429, Body: "slow down"}).Error())
}

func TestErrDatabase(t *testing.T) {
	err := NewErrDatabase("update", io.EOF)
	assert.Equal(t, "database error: update: EOF", err.Error())
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, "database error: no rows", NewErrDatabase("no rows", nil).Error())
}

func TestHTTPCode(t *testing.T) {
	assert.Equal(t, 429, HTTPCode(fmt.Errorf("can't call: %w", &ErrHTTP{Code: 429})))
	assert.Equal(t, 0, HTTPCode(io.EOF))
	assert.Equal(t, 0, HTTPCode(nil))
}
