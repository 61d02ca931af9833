package httpclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signAlgorithm  = "HMAC-SHA256"
	signTimeFormat = "20060102T150405Z"
	headerDate     = "X-Date"
	headerBodyHash = "X-Content-Sha256"
)

// SignedAuth signs each request with an access/secret key pair using
// HMAC-SHA256 over a canonical form of the request.
type SignedAuth struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string

	// Now overrides the signing clock.
	Now func() time.Time
}

func (s *SignedAuth) Scheme() AuthScheme { return SchemeSigned }

func (s *SignedAuth) Authorize(_ context.Context, req *http.Request, body []byte) error {
	if s.AccessKey == "" || s.SecretKey == "" {
		return errors.New("signed auth requires access key and secret key")
	}
	if s.Region == "" || s.Service == "" {
		return errors.New("signed auth requires region and service")
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now().UTC()
	xdate := ts.Format(signTimeFormat)
	day := xdate[:8]

	bodyHash := hashHex(body)
	req.Header.Set(headerDate, xdate)
	req.Header.Set(headerBodyHash, bodyHash)

	signedHeaders, canonicalHeaders := canonicalizeHeaders(req)
	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalPath(req.URL),
		canonicalQuery(req.URL.Query()),
		canonicalHeaders,
		signedHeaders,
		bodyHash,
	}, "\n")

	scope := strings.Join([]string{day, s.Region, s.Service, "request"}, "/")
	stringToSign := strings.Join([]string{
		signAlgorithm,
		xdate,
		scope,
		hashHex([]byte(canonicalRequest)),
	}, "\n")

	key := hmacSHA256([]byte(s.SecretKey), day)
	key = hmacSHA256(key, s.Region)
	key = hmacSHA256(key, s.Service)
	key = hmacSHA256(key, "request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	req.Header.Set("Authorization", signAlgorithm+
		" Credential="+s.AccessKey+"/"+scope+
		", SignedHeaders="+signedHeaders+
		", Signature="+signature)
	return nil
}

// canonicalizeHeaders signs host, content-type and every x-* header set so far.
func canonicalizeHeaders(req *http.Request) (signed, canonical string) {
	values := map[string]string{"host": req.URL.Host}
	if req.Host != "" {
		values["host"] = req.Host
	}
	for k, v := range req.Header {
		lk := strings.ToLower(k)
		if lk == "content-type" || strings.HasPrefix(lk, "x-") {
			values[lk] = strings.TrimSpace(strings.Join(v, ","))
		}
	}
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(values[k])
		b.WriteByte('\n')
	}
	return strings.Join(names, ";"), b.String()
}

func canonicalPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

func canonicalQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		vs := append([]string(nil), q[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, queryEscape(k)+"="+queryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

// queryEscape percent-encodes spaces as %20 rather than '+'.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(msg))
	return m.Sum(nil)
}
