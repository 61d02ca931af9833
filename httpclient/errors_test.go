package httpclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindAPI, "api_error"},
		{KindAuth, "auth_error"},
		{KindTransport, "transport_error"},
		{KindDecode, "decode_error"},
		{KindUnknown, "unknown"},
		{ErrorKind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String(), "ErrorKind(%d)", int(tt.kind))
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindUnknown},
		{errors.New("plain"), KindUnknown},
		{fmt.Errorf("wrap: %w", &APIError{Code: 4000}), KindAPI},
		{fmt.Errorf("wrap: %w", &AuthError{Type: AuthSlowDown}), KindAuth},
		{fmt.Errorf("wrap: %w", &TransportError{Err: context.Canceled}), KindTransport},
		{fmt.Errorf("wrap: %w", newDecodeError(errors.New("bad"), "")), KindDecode},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "KindOf(%v)", tt.err)
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		err  *APIError
		want string
	}{
		{&APIError{Code: 4100, Message: "bad", TraceID: "L1"}, `httpclient: api error code=4100 msg="bad" logid=L1`},
		{&APIError{Message: "oops"}, `httpclient: api error msg="oops"`},
		{&APIError{StatusCode: 502}, `httpclient: api error (HTTP 502)`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

func TestTransportError(t *testing.T) {
	e := &TransportError{Method: "GET", URL: "http://x/y", Timeout: true, Err: context.DeadlineExceeded}
	assert.Contains(t, e.Error(), "timeout GET http://x/y")
	assert.ErrorIs(t, e, context.DeadlineExceeded)
	assert.True(t, IsTimeout(fmt.Errorf("call: %w", e)))
	assert.False(t, IsTimeout(&TransportError{Err: errors.New("refused")}), "connection refusal is not a timeout")
}

func TestDecodeError_Error(t *testing.T) {
	e := &DecodeError{Index: 2, StatusCode: 200, Snippet: "{x", TraceID: "L9", Err: errors.New("boom")}
	assert.Equal(t, `httpclient: decode error at index 2 (HTTP 200): boom body="{x" logid=L9`, e.Error())
}

func TestSnippet_Truncates(t *testing.T) {
	got := snippet([]byte(strings.Repeat("a", 300)))
	assert.Len(t, got, maxSnippet+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTraceIDOf(t *testing.T) {
	assert.Equal(t, "T1", TraceIDOf(&AuthError{Type: AuthAccessDenied, TraceID: "T1"}))
	assert.Empty(t, TraceIDOf(&TransportError{Err: errors.New("x")}), "transport errors carry no trace id")
}

func TestIsKnownAuthErrorType(t *testing.T) {
	for _, id := range []string{"authorization_pending", "slow_down", "access_denied", "expired_token", "invalid_grant", "invalid_token"} {
		assert.True(t, IsKnownAuthErrorType(id), id)
	}
	assert.False(t, IsKnownAuthErrorType("rate_limited"))
	assert.False(t, IsKnownAuthErrorType(string(AuthCredentialUnavailable)))
}
