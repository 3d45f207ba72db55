package utils

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse indicates a download that produced no bytes
	ErrEmptyResponse = errors.New("downloaded file is empty (0 bytes)")
	// ErrRateLimitExceeded is returned when retries are exhausted on rate limited calls
	ErrRateLimitExceeded = errors.New("API rate limit exceeded. Please try again later with fewer requests")
	// ErrExtractionFailed indicates no usable value in a model response
	ErrExtractionFailed = errors.New("could not extract a valid total amount from the receipt")
	// ErrNoFilename indicates a query without any recognizable file name
	ErrNoFilename = errors.New("no file name found in query")
	// ErrTooLarge indicates a download exceeding the configured size limit
	ErrTooLarge = errors.New("downloaded file is too large")
)

// ErrNetworkTimeout wraps a timeouted network call
type ErrNetworkTimeout struct {
	err error
}

// NewErrNetworkTimeout creates new error
func NewErrNetworkTimeout(err error) error {
	return &ErrNetworkTimeout{err: err}
}

func (e *ErrNetworkTimeout) Error() string {
	return "network timeout: " + e.err.Error()
}

func (e *ErrNetworkTimeout) Unwrap() error {
	return e.err
}

// ErrHTTP is a non 2xx response of an upstream service
type ErrHTTP struct {
	Code int
	Body string
}

func (e *ErrHTTP) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error %d", e.Code)
	}
	return fmt.Sprintf("HTTP error %d: %s", e.Code, e.Body)
}

// ErrDatabase keeps the message of a failed store operation
type ErrDatabase struct {
	Msg string
	err error
}

// NewErrDatabase creates new error
func NewErrDatabase(msg string, err error) error {
	return &ErrDatabase{Msg: msg, err: err}
}

func (e *ErrDatabase) Error() string {
	if e.err == nil {
		return "database error: " + e.Msg
	}
	return "database error: " + e.Msg + ": " + e.err.Error()
}

func (e *ErrDatabase) Unwrap() error {
	return e.err
}

// HTTPCode returns the status code of a wrapped *ErrHTTP or 0
func HTTPCode(err error) int {
	var he *ErrHTTP
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}
