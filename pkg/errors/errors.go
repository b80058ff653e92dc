// Package errors defines the error taxonomy shared by every gondri package.
// Callers match on the sentinels with errors.Is; AppError carries an
// optional human message and HTTP status for the service layer.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration marks a repository path that is missing, not a
	// directory, or lacks a manifest.
	ErrConfiguration = errors.New("configuration error")
	// ErrIllegalState marks use of a handle after Close.
	ErrIllegalState = errors.New("illegal state")
	// ErrLookup marks a document id, external id, or term id that does not
	// exist in the repository.
	ErrLookup = errors.New("lookup error")
	// ErrParse marks query text the query grammar cannot accept.
	ErrParse = errors.New("parse error")
	// ErrInvalidArgument marks a value of the wrong shape, such as a bare
	// string passed where a token sequence is expected.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCorrupt         = errors.New("corrupt repository")
	ErrTimeout         = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Lookupf builds a not-found error wrapping ErrLookup.
func Lookupf(format string, args ...any) *AppError {
	return Newf(ErrLookup, http.StatusNotFound, format, args...)
}

// Parsef builds a bad-request error wrapping ErrParse.
func Parsef(format string, args ...any) *AppError {
	return Newf(ErrParse, http.StatusBadRequest, format, args...)
}

// Invalidf builds a bad-request error wrapping ErrInvalidArgument.
func Invalidf(format string, args ...any) *AppError {
	return Newf(ErrInvalidArgument, http.StatusBadRequest, format, args...)
}

// HTTPStatusCode maps any error produced by gondri to a response status.
// Errors wrapping no known sentinel map to 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrLookup):
		return http.StatusNotFound
	case errors.Is(err, ErrParse), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrIllegalState), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
