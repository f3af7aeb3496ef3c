// Package httperr provides error types carrying HTTP status codes.
package httperr

import (
	"errors"
	"net/http"
)

// CodedError wraps an error with an HTTP status code so callers can branch on the
// response status without parsing messages.
type CodedError struct {
	err  error
	code int
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *CodedError) Unwrap() error {
	return e.err
}

// WithCode wraps err with an HTTP status code. A nil err yields nil.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &CodedError{err: err, code: code}
}

// New creates an error with the given message and status code.
func New(message string, code int) error {
	return &CodedError{err: errors.New(message), code: code}
}

// Code extracts the status code from err's chain.
// It returns 200 for nil and 500 when no CodedError is present.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries a status code, i.e. the remote answered.
// Transport failures (dial, timeout, reset) have no code.
func HasCode(err error) bool {
	var coded *CodedError
	return errors.As(err, &coded)
}
