package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// AuthScheme names how a Credential authorizes requests.
type AuthScheme string

const (
	SchemeBearer AuthScheme = "bearer"
	SchemeSigned AuthScheme = "signed"
)

// Credential authorizes an outgoing request. The strategy is chosen once when
// the adapter is built; Authorize runs before every dispatch, after the body
// is final. Any error aborts the call with an *AuthError.
type Credential interface {
	Scheme() AuthScheme
	Authorize(ctx context.Context, req *http.Request, body []byte) error
}

// TokenSource supplies bearer tokens that may change over time.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type bearer struct {
	src TokenSource
}

// BearerAuth authorizes with a fixed token.
func BearerAuth(token string) Credential {
	return &bearer{src: staticToken(token)}
}

// BearerFromSource authorizes with a token fetched from src on every request.
func BearerFromSource(src TokenSource) Credential {
	return &bearer{src: src}
}

func (b *bearer) Scheme() AuthScheme { return SchemeBearer }

func (b *bearer) Authorize(ctx context.Context, req *http.Request, _ []byte) error {
	if b.src == nil {
		return errors.New("no token source")
	}
	tok, err := b.src.Token(ctx)
	if err != nil {
		return err
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return errors.New("empty bearer token")
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// authorize runs cred and maps any failure to an *AuthError.
func authorize(ctx context.Context, cred Credential, req *http.Request, body []byte) error {
	if cred == nil {
		return nil
	}
	err := cred.Authorize(ctx, req, body)
	if err == nil {
		return nil
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &AuthError{Type: AuthCredentialUnavailable, Err: err}
}
