package models

import (
	"errors"
	"net/http"

	"github.com/use-agent/pagequery/query"
)

// API-level error codes (the query taxonomy codes pass through unchanged).
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeDriver       = "DRIVER_FAILURE"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DetailFor converts any error from a query run into an API-facing
// ErrorDetail plus the HTTP status to serve it with. Query taxonomy codes
// pass through; anything else is a driver failure.
func DetailFor(err error) (*ErrorDetail, int) {
	var qe *query.Error
	if !errors.As(err, &qe) {
		return &ErrorDetail{Code: ErrCodeDriver, Message: err.Error()}, http.StatusBadGateway
	}

	detail := &ErrorDetail{Code: qe.Code, Message: qe.Message}
	switch qe.Code {
	case query.ErrCodeInvalidQuery, query.ErrCodeInvalidMethod,
		query.ErrCodeInvalidPipeline, query.ErrCodeNoResults:
		return detail, http.StatusBadRequest
	case query.ErrCodeTimeout:
		return detail, http.StatusGatewayTimeout
	case query.ErrCodeBlankPage, query.ErrCodeHTTPStatus:
		return detail, http.StatusBadGateway
	default:
		return detail, http.StatusInternalServerError
	}
}
