package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

// Session owns a connection pool. It is safe for concurrent use by many
// in-flight requests and must be closed by its owner.
type Session struct {
	client    *http.Client
	closeIdle func()
	closeOnce sync.Once
}

// NewSession builds a pooled transport from cfg.
func NewSession(cfg Config) (*Session, error) {
	cfg.ApplyDefaults()
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	if tlsCfg != nil {
		t.TLSClientConfig = tlsCfg
	}

	if !cfg.DisableHTTP2 {
		h2, err := http2.ConfigureTransports(t)
		if err != nil {
			return nil, fmt.Errorf("httpclient: configure http2: %w", err)
		}
		h2.ReadIdleTimeout = cfg.HTTP2ReadIdleTimeout
		h2.PingTimeout = defaultPingTimeout
	}

	var rt http.RoundTripper = t
	if cfg.Instrument {
		rt = otelhttp.NewTransport(t)
	}
	return &Session{
		client:    &http.Client{Transport: rt, Timeout: cfg.Timeout},
		closeIdle: t.CloseIdleConnections,
	}, nil
}

// NewSessionWithTransport wraps an existing RoundTripper, for test doubles
// and recorders. Close calls CloseIdleConnections when rt provides it.
func NewSessionWithTransport(rt http.RoundTripper, timeout time.Duration) *Session {
	s := &Session{client: &http.Client{Transport: rt, Timeout: timeout}}
	if c, ok := rt.(interface{ CloseIdleConnections() }); ok {
		s.closeIdle = c.CloseIdleConnections
	}
	return s
}

// Client returns the underlying *http.Client.
func (s *Session) Client() *http.Client {
	return s.client
}

// Close releases idle connections. In-flight bodies stay readable until
// their owners close them. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.closeIdle != nil {
			s.closeIdle()
		}
	})
	return nil
}
