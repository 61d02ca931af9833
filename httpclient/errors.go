package httpclient

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest reports a Request that violates its own invariants. It is
// returned before any network I/O.
var ErrInvalidRequest = errors.New("httpclient: invalid request")

// ErrorKind classifies failures surfaced by the adapter.
type ErrorKind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown ErrorKind = iota
	// KindAPI is a business failure reported in the response body.
	KindAPI
	// KindAuth is a credential-flow failure, local or reported by the server.
	KindAuth
	// KindTransport is a network, TLS or timeout failure before a response arrived.
	KindTransport
	// KindDecode is a malformed body, malformed frame, or record that failed validation.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindAPI:
		return "api_error"
	case KindAuth:
		return "auth_error"
	case KindTransport:
		return "transport_error"
	case KindDecode:
		return "decode_error"
	default:
		return "unknown"
	}
}

// APIError is a failure the platform reported in a structured body or an
// inner stream "error" event.
type APIError struct {
	// Code is the platform error code. Zero when the body carried only a message.
	Code int
	// Message is the platform message.
	Message string
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// TraceID is the server trace id from the response headers.
	TraceID string
}

func (e *APIError) Error() string {
	var s string
	switch {
	case e.Code != 0:
		s = fmt.Sprintf("httpclient: api error code=%d msg=%q", e.Code, e.Message)
	case e.Message != "":
		s = fmt.Sprintf("httpclient: api error msg=%q", e.Message)
	default:
		s = fmt.Sprintf("httpclient: api error (HTTP %d)", e.StatusCode)
	}
	if e.TraceID != "" {
		s += " logid=" + e.TraceID
	}
	return s
}

// AuthErrorType identifies a credential-flow failure.
type AuthErrorType string

// Identifiers the platform returns in "error_code".
const (
	AuthAuthorizationPending AuthErrorType = "authorization_pending"
	AuthSlowDown             AuthErrorType = "slow_down"
	AuthAccessDenied         AuthErrorType = "access_denied"
	AuthExpiredToken         AuthErrorType = "expired_token"
	AuthInvalidGrant         AuthErrorType = "invalid_grant"
	AuthInvalidToken         AuthErrorType = "invalid_token"
)

// AuthCredentialUnavailable is raised locally when a Credential cannot
// authorize a request.
const AuthCredentialUnavailable AuthErrorType = "credential_unavailable"

var knownAuthErrors = map[AuthErrorType]struct{}{
	AuthAuthorizationPending: {},
	AuthSlowDown:             {},
	AuthAccessDenied:         {},
	AuthExpiredToken:         {},
	AuthInvalidGrant:         {},
	AuthInvalidToken:         {},
}

// IsKnownAuthErrorType reports whether id is one of the platform auth-failure
// identifiers.
func IsKnownAuthErrorType(id string) bool {
	_, ok := knownAuthErrors[AuthErrorType(id)]
	return ok
}

// AuthError is a credential-flow failure. Callers can special-case it to
// re-authenticate.
type AuthError struct {
	Type       AuthErrorType
	StatusCode int
	TraceID    string
	Err        error
}

func (e *AuthError) Error() string {
	s := "httpclient: auth error " + string(e.Type)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.TraceID != "" {
		s += " logid=" + e.TraceID
	}
	return s
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError is a failure before any HTTP response was received.
// It is never retried by this package.
type TransportError struct {
	Method  string
	URL     string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	kind := "transport error"
	if e.Timeout {
		kind = "timeout"
	}
	if e.Method == "" {
		return fmt.Sprintf("httpclient: %s: %v", kind, e.Err)
	}
	return fmt.Sprintf("httpclient: %s %s %s: %v", kind, e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a body, frame or record that could not be decoded.
type DecodeError struct {
	// Index is the failing element of a list result, or -1.
	Index int
	// StatusCode is the HTTP status when the error came from a response body.
	StatusCode int
	// Snippet is the start of the offending body, for diagnostics.
	Snippet string
	TraceID string
	Err     error
}

func (e *DecodeError) Error() string {
	s := "httpclient: decode error"
	if e.Index >= 0 {
		s += fmt.Sprintf(" at index %d", e.Index)
	}
	if e.StatusCode > 0 {
		s += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		s += fmt.Sprintf(" body=%q", e.Snippet)
	}
	if e.TraceID != "" {
		s += " logid=" + e.TraceID
	}
	return s
}

func (e *DecodeError) Unwrap() error { return e.Err }

const maxSnippet = 256

func snippet(body []byte) string {
	if len(body) > maxSnippet {
		return string(body[:maxSnippet]) + "..."
	}
	return string(body)
}

func newDecodeError(err error, traceID string) *DecodeError {
	return &DecodeError{Index: -1, TraceID: traceID, Err: err}
}

// KindOf returns the kind of err, looking through wrapping.
func KindOf(err error) ErrorKind {
	var (
		apiErr       *APIError
		authErr      *AuthError
		transportErr *TransportError
		decodeErr    *DecodeError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &apiErr):
		return KindAPI
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &decodeErr):
		return KindDecode
	default:
		return KindUnknown
	}
}

// IsAPIError reports whether err is an *APIError.
func IsAPIError(err error) bool { return KindOf(err) == KindAPI }

// IsAuthError reports whether err is an *AuthError.
func IsAuthError(err error) bool { return KindOf(err) == KindAuth }

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool { return KindOf(err) == KindTransport }

// IsDecode reports whether err is a *DecodeError.
func IsDecode(err error) bool { return KindOf(err) == KindDecode }

// IsTimeout reports whether err is a TransportError caused by a deadline.
func IsTimeout(err error) bool {
	var e *TransportError
	return errors.As(err, &e) && e.Timeout
}

// TraceIDOf returns the server trace id attached to err, if any.
func TraceIDOf(err error) string {
	var (
		apiErr    *APIError
		authErr   *AuthError
		decodeErr *DecodeError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.TraceID
	case errors.As(err, &authErr):
		return authErr.TraceID
	case errors.As(err, &decodeErr):
		return decodeErr.TraceID
	}
	return ""
}
