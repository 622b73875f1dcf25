package client

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every call made after Close.
	ErrClosed = errors.New("client: closed")
	// ErrTimeout is returned when no response headers arrive within the request timeout.
	ErrTimeout = errors.New("client: request timed out")
	// ErrInvalidURI is returned when bucket, object or location cannot form a URI.
	ErrInvalidURI = errors.New("client: malformed object uri")
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method     string
	URI        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %s", e.Method, e.URI, e.Status)
}
