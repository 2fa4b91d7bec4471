// Package gatewayerr defines the error taxonomy surfaced across the
// dispatcher, pool, and translator, each carrying the HTTP status and
// optional headers its family maps to (spec §7).
package gatewayerr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Kind identifies a taxonomy entry.
type Kind string

const (
	KindNoAccountsAvailable Kind = "no_accounts_available"
	KindUnauthorized        Kind = "unauthorized"
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamTransient   Kind = "upstream_transient"
	KindUpstreamClient      Kind = "upstream_client"
	KindTranslation         Kind = "translation_error"
	KindInternal            Kind = "internal_error"
	KindCapacityExceeded    Kind = "capacity_exceeded"
)

var statusByKind = map[Kind]int{
	KindNoAccountsAvailable: http.StatusServiceUnavailable,
	KindUnauthorized:        http.StatusUnauthorized,
	KindRateLimited:         http.StatusTooManyRequests,
	KindUpstreamTransient:   http.StatusBadGateway,
	KindUpstreamClient:      http.StatusBadRequest,
	KindTranslation:         http.StatusBadRequest,
	KindInternal:            http.StatusInternalServerError,
	KindCapacityExceeded:    http.StatusBadRequest,
}

// Error is the typed gateway error. It implements error, StatusCode, and
// Headers so that HTTP handlers can surface it uniformly.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds; 0 means "not applicable"
	Upstream   []byte
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// StatusCode returns the HTTP status this error's kind surfaces as.
func (e *Error) StatusCode() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Headers returns any headers (e.g. Retry-After) this error carries.
func (e *Error) Headers() http.Header {
	h := make(http.Header)
	if e.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	return h
}

// JSON renders the standard {"error": {...}} envelope for this error,
// including reset_seconds when the error carries a Retry-After value
// (spec §12).
func (e *Error) JSON() []byte {
	errBody := map[string]any{
		"code":    string(e.Kind),
		"message": e.Error(),
	}
	if e.RetryAfter > 0 {
		errBody["reset_seconds"] = e.RetryAfter
	}
	body := map[string]any{"error": errBody}
	data, err := json.Marshal(body)
	if err != nil {
		return []byte(`{"error":{"code":"internal_error","message":"failed to encode error"}}`)
	}
	return data
}
