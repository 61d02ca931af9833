package httpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultJWTTTL    = 15 * time.Minute
	defaultJWTLeeway = 30 * time.Second
)

// JWTTokenSource mints short-lived self-signed app tokens and caches each one
// until it is about to expire. Use it with BearerFromSource.
type JWTTokenSource struct {
	Issuer   string
	Subject  string
	Audience string
	KeyID    string

	// Method is the signing algorithm, e.g. gojwt.SigningMethodHS256 with a
	// []byte Key or gojwt.SigningMethodRS256 with an *rsa.PrivateKey.
	Method gojwt.SigningMethod
	Key    any

	// TTL is the lifetime of a minted token. Default 15m.
	TTL time.Duration
	// Leeway refreshes a cached token this long before it expires. Default 30s.
	Leeway time.Duration

	Now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ TokenSource = (*JWTTokenSource)(nil)

// Token returns the cached token or mints a new one.
func (s *JWTTokenSource) Token(_ context.Context) (string, error) {
	if s.Method == nil || s.Key == nil {
		return "", errors.New("jwt token source requires a signing method and key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(s.leeway()).Before(s.expires) {
		return s.token, nil
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultJWTTTL
	}
	expires := now.Add(ttl)
	claims := gojwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   s.Subject,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	if s.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{s.Audience}
	}

	tok := gojwt.NewWithClaims(s.Method, claims)
	if s.KeyID != "" {
		tok.Header["kid"] = s.KeyID
	}
	signed, err := tok.SignedString(s.Key)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	s.token, s.expires = signed, expires
	return signed, nil
}

func (s *JWTTokenSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *JWTTokenSource) leeway() time.Duration {
	if s.Leeway > 0 {
		return s.Leeway
	}
	return defaultJWTLeeway
}
