// Package api implements the Graph request/response pipeline: request
// assembly, rate-budgeted transport with retries, pagination, and composite
// batch submission.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. Transient kinds are retried
// inside the pipeline and only surface once the retry budget is exhausted;
// permanent kinds surface immediately.
type ErrorKind int

const (
	// KindInvalidURL is a malformed endpoint or query (programmer error).
	KindInvalidURL ErrorKind = iota
	// KindUnauthorized is HTTP 401: the token is invalid or expired and
	// the caller must re-authenticate. Never retried here.
	KindUnauthorized
	// KindForbidden is HTTP 403: the caller's identity lacks a permission
	// grant for the resource/operation. Never retried.
	KindForbidden
	// KindNotFound is HTTP 404. Never retried.
	KindNotFound
	// KindRateLimited means the 429 retry budget was exhausted. Carries
	// the last-seen Retry-After value.
	KindRateLimited
	// KindServer is a 5xx, or a structured error envelope on another
	// status. Retried up to the ceiling before surfacing.
	KindServer
	// KindNetwork is a transport-level failure (timeout, reset). Retried
	// up to the ceiling before surfacing.
	KindNetwork
	// KindEncoding is a request body serialization failure. Never retried.
	KindEncoding
	// KindHTTP is the fallback for unrecognized status codes without a
	// decodable error envelope. Never retried.
	KindHTTP
)

// String returns a short name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server_error"
	case KindNetwork:
		return "network_error"
	case KindEncoding:
		return "encoding_failure"
	case KindHTTP:
		return "http_error"
	default:
		return "unknown"
	}
}

// Error is the typed failure surfaced by the pipeline. It carries enough
// detail for the service layer to render an actionable message (for 403,
// the resource and operation that lacked a grant) without exposing raw
// stack traces.
type Error struct {
	Kind       ErrorKind
	StatusCode int    // HTTP status, 0 for transport failures
	Code       string // server error envelope code, if any
	Message    string // human-readable description
	RetryAfter string // last-seen Retry-After value for KindRateLimited
	Resource   string // endpoint path the request targeted
	Operation  string // HTTP method
	Err        error  // underlying cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s %s: %s (%s)", e.Kind, e.Operation, e.Resource, e.Message, e.Code)
	case e.Message != "":
		return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Operation, e.Resource, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s %s: status %d", e.Kind, e.Operation, e.Resource, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Operation, e.Resource)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the pipeline may re-issue a request that
// failed with this kind.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindServer, KindNetwork:
		return true
	default:
		return false
	}
}

// kindOf extracts the ErrorKind from any error, or -1.
func kindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return -1
}

// IsUnauthorized reports whether err is a 401 failure.
func IsUnauthorized(err error) bool { return kindOf(err) == KindUnauthorized }

// IsForbidden reports whether err is a 403 failure.
func IsForbidden(err error) bool { return kindOf(err) == KindForbidden }

// IsNotFound reports whether err is a 404 failure.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsRateLimited reports whether err means the 429 retry budget ran out.
func IsRateLimited(err error) bool { return kindOf(err) == KindRateLimited }

// errorEnvelope is the uniform error body on non-2xx, non-429 responses:
//
//	{"error": {"code": "...", "message": "...", "innerError": {...}}}
type errorEnvelope struct {
	Error struct {
		Code       string          `json:"code"`
		Message    string          `json:"message"`
		InnerError json.RawMessage `json:"innerError"`
	} `json:"error"`
}

// decodeErrorEnvelope parses the structured error body. Returns ok=false
// when the body is not a recognizable envelope.
func decodeErrorEnvelope(body []byte) (code, message string, ok bool) {
	if len(body) == 0 {
		return "", "", false
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", false
	}
	if env.Error.Code == "" && env.Error.Message == "" {
		return "", "", false
	}
	return env.Error.Code, env.Error.Message, true
}
