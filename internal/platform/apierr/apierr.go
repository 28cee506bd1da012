package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes surfaced at the API boundary. Authorization failures
// are deliberately distinct from not-found: owning the wrong session and
// referencing a missing one are different conditions.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeUpstreamModel     = "upstream_model_error"
	CodePersistence       = "persistence_error"
	CodeStreamNotFound    = "stream_not_found"
	CodeSessionClosed     = "session_closed"
	CodeAlreadyProcessed  = "already_processed"
	CodeUnauthenticated   = "unauthenticated"
	CodeKnowledgeDegraded = "knowledge_lookup_degraded"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Invalid(err error) *Error   { return New(http.StatusBadRequest, CodeInvalidRequest, err) }
func Forbidden(err error) *Error { return New(http.StatusForbidden, CodeForbidden, err) }
func NotFound(err error) *Error  { return New(http.StatusNotFound, CodeNotFound, err) }
func Upstream(err error) *Error  { return New(http.StatusBadGateway, CodeUpstreamModel, err) }
func Storage(err error) *Error   { return New(http.StatusInternalServerError, CodePersistence, err) }

// StatusOf resolves the HTTP status for an arbitrary error chain,
// defaulting to 500 for anything untyped.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf resolves the API code for an arbitrary error chain.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal_error"
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
