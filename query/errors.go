package query

import (
	"errors"
	"fmt"
	"time"
)

// Error codes carried by query errors. The API layer maps these to HTTP
// status codes.
const (
	ErrCodeInvalidQuery    = "INVALID_QUERY"
	ErrCodeInvalidMethod   = "INVALID_METHOD"
	ErrCodeInvalidPipeline = "INVALID_PIPELINE"
	ErrCodeBlankPage       = "BLANK_PAGE"
	ErrCodeHTTPStatus      = "HTTP_STATUS"
	ErrCodeTimeout         = "WAIT_TIMEOUT"
	ErrCodeNoResults       = "NO_RESULTS"
)

// Error is the typed error raised by query construction and execution.
// It implements the error interface and supports error wrapping via Unwrap.
//
// Driver-originated failures (navigation breakage, lost connections) are
// never wrapped in an Error; they propagate to the caller as-is.
type Error struct {
	Code    string
	Message string
	Err     error // wrapped original error, if any

	// Status is the offending HTTP status code for ErrCodeHTTPStatus.
	Status int

	// Selector and Timeout describe the failed wait for ErrCodeTimeout.
	Selector string
	Timeout  time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// IsCode reports whether err is (or wraps) a query Error with the given code.
func IsCode(err error, code string) bool {
	var qe *Error
	return errors.As(err, &qe) && qe.Code == code
}

func errInvalidQuery() *Error {
	return NewError(ErrCodeInvalidQuery, "invalid query", nil)
}

func errInvalidMethod(method string) *Error {
	return NewError(ErrCodeInvalidMethod, "invalid method "+method, nil)
}

func errInvalidPipeline() *Error {
	return NewError(ErrCodeInvalidPipeline, "Select can only take a path collection", nil)
}

func errBlankPage() *Error {
	return NewError(ErrCodeBlankPage, "blank page", nil)
}

func errHTTPStatus(status int) *Error {
	e := NewError(ErrCodeHTTPStatus, fmt.Sprintf("response return status code: %d", status), nil)
	e.Status = status
	return e
}

func errTimeout(selector string, timeout time.Duration, err error) *Error {
	e := NewError(ErrCodeTimeout,
		fmt.Sprintf("selector %q did not appear within %s", selector, timeout), err)
	e.Selector = selector
	e.Timeout = timeout
	return e
}

func errNoResults() *Error {
	return NewError(ErrCodeNoResults, "query did not return any results. Did you forget a select?", nil)
}
