package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/agentplatform/logger"
	"github.com/kbukum/agentplatform/observability"
)

const headerRequestID = "X-Request-Id"

// Adapter dispatches Requests over an owned Session and classifies the
// responses. It is safe for concurrent use.
type Adapter struct {
	cfg        Config
	session    *Session
	ownSession bool
	transport  http.RoundTripper
	cred       Credential
	log        *logger.Logger
	metrics    *observability.ClientMetrics
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTransport sends requests through rt instead of a pooled transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Adapter) { a.transport = rt }
}

// WithSession shares an existing Session. The adapter does not close it.
func WithSession(s *Session) Option {
	return func(a *Adapter) { a.session = s }
}

// WithLogger overrides the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithMetrics records client metrics on m.
func WithMetrics(m *observability.ClientMetrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithCredential overrides Config.Credential.
func WithCredential(c Credential) Option {
	return func(a *Adapter) { a.cred = c }
}

// New creates an Adapter.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Adapter{cfg: cfg, cred: cfg.Credential}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.WithComponent("httpclient")
	}
	if a.session == nil {
		s, err := a.openSession()
		if err != nil {
			return nil, err
		}
		a.session, a.ownSession = s, true
	}
	return a, nil
}

func (a *Adapter) openSession() (*Session, error) {
	if a.transport != nil {
		return NewSessionWithTransport(a.transport, a.cfg.Timeout), nil
	}
	return NewSession(a.cfg)
}

// Config returns the effective configuration.
func (a *Adapter) Config() Config {
	return a.cfg
}

// Send dispatches req and blocks until response headers arrive. Structured
// bodies are fully read before Send returns; stream and file bodies are
// returned open and the caller must Close the Result.
func (a *Adapter) Send(ctx context.Context, req *Request) (*Result, error) {
	return a.send(ctx, a.session, req)
}

// Pending is an in-flight SendAsync call.
type Pending struct {
	done chan struct{}
	res  *Result
	err  error
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Await waits for the result. If ctx ends first Await returns a
// *TransportError and the eventual result is closed in the background.
// Await must be called at most once.
func (p *Pending) Await(ctx context.Context) (*Result, error) {
	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		go func() {
			<-p.done
			_ = p.res.Close()
		}()
		return nil, &TransportError{
			Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:     fmt.Errorf("await response: %w", ctx.Err()),
		}
	}
}

// SendAsync dispatches req on its own goroutine. With
// Config.DedicatedAsyncSession the call gets a private Session that is
// closed together with its Result.
func (a *Adapter) SendAsync(ctx context.Context, req *Request) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)

		sess := a.session
		var release func() error
		if a.cfg.DedicatedAsyncSession {
			s, err := a.openSession()
			if err != nil {
				p.err = &TransportError{Method: req.Method, URL: req.Path, Err: err}
				return
			}
			sess, release = s, s.Close
		}

		p.res, p.err = a.send(ctx, sess, req)
		if release == nil {
			return
		}
		switch {
		case p.err != nil, p.res.Content == ContentStructured:
			_ = release()
		case p.res.Stream != nil:
			p.res.Stream.addRelease(release)
		case p.res.File != nil:
			p.res.File.closer.addRelease(release)
		}
	}()
	return p
}

func (a *Adapter) send(ctx context.Context, sess *Session, req *Request) (res *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	target := a.resolveURL(req.Path)
	ctx, call := observability.StartCall(ctx, a.metrics, req.Method, target)
	status := 0
	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = KindOf(err).String()
		case res.Content != ContentStructured:
			outcome = res.Content.String()
		}
		call.End(ctx, status, outcome, err)
	}()

	httpReq, body, err := a.build(ctx, req, target)
	if err != nil {
		return nil, err
	}
	requestID := httpReq.Header.Get(headerRequestID)
	call.Annotate(observability.AttrRequestID, requestID)

	if err := authorize(ctx, a.cred, httpReq, body); err != nil {
		a.log.Warn("request not authorized", logger.Fields(
			logger.FieldMethod, req.Method,
			logger.FieldURL, target,
			logger.FieldError, err,
		))
		return nil, err
	}

	a.log.Debug("dispatching request", logger.Fields(
		logger.FieldMethod, req.Method,
		logger.FieldURL, target,
		logger.FieldRequestID, requestID,
	))

	resp, err := sess.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{
			Method:  req.Method,
			URL:     target,
			Timeout: isTimeout(ctx, err),
			Err:     err,
		}
	}

	raw := newRawResponse(resp, a.cfg.TraceHeader)
	status = resp.StatusCode
	call.Annotate(observability.AttrTraceID, raw.TraceID)

	log := a.log.WithTraceID(raw.TraceID)
	log.Debug("response received", logger.MergeWithDuration(logger.Fields(
		logger.FieldMethod, req.Method,
		logger.FieldURL, target,
		logger.FieldStatus, status,
		"content_type", resp.Header.Get("Content-Type"),
	), call.Elapsed()))

	res, err = a.handle(ctx, req, target, resp, raw, log)
	if err != nil && KindOf(err) != KindTransport {
		log.Warn("platform call failed", logger.Fields(
			logger.FieldMethod, req.Method,
			logger.FieldURL, target,
			logger.FieldStatus, status,
			logger.FieldError, err,
		))
	}
	return res, err
}

// handle classifies resp and produces the Result. A non-2xx status is always
// read as a structured body, so it cannot pass as a stream or a file.
func (a *Adapter) handle(ctx context.Context, req *Request, target string, resp *http.Response, raw *RawResponse, log *logger.Logger) (*Result, error) {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	ct := resp.Header.Get("Content-Type")
	content := classify(ct, a.cfg.BinaryMarkers)
	if !ok {
		content = ContentStructured
	}

	switch content {
	case ContentStream:
		return &Result{
			RawResponse: raw,
			Content:     ContentStream,
			Kind:        req.Kind,
			Stream:      newStreamBody(ctx, raw, resp.Body, &a.cfg, log, a.metrics),
		}, nil
	case ContentFile:
		return &Result{
			RawResponse: raw,
			Content:     ContentFile,
			Kind:        req.Kind,
			File: &FileResponse{
				RawResponse: raw,
				ContentType: ct,
				body:        resp.Body,
				closer:      &closer{body: resp.Body},
			},
		}, nil
	}

	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Method:  req.Method,
			URL:     target,
			Timeout: isTimeout(ctx, err),
			Err:     fmt.Errorf("read response body: %w", err),
		}
	}

	m, err := mapBody(data, req.DataField, resp.StatusCode, raw.TraceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &APIError{StatusCode: resp.StatusCode, TraceID: raw.TraceID}
	}
	return &Result{
		RawResponse: raw,
		Content:     ContentStructured,
		Kind:        req.Kind,
		Payload:     m.payload,
		Cursor:      m.cursor,
		DebugURL:    m.debugURL,
		ExecuteID:   m.executeID,
	}, nil
}

func (a *Adapter) resolveURL(path string) string {
	if a.cfg.BaseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// build assembles the *http.Request. The returned body bytes are what the
// Credential signs.
func (a *Adapter) build(ctx context.Context, req *Request, target string) (*http.Request, []byte, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode body: %v", ErrInvalidRequest, err)
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, rdr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	h := httpReq.Header
	h.Set("User-Agent", a.cfg.UserAgent)
	for k, v := range a.cfg.Headers {
		h.Set(k, v)
	}
	if body != nil && contentType != "" {
		h.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		h.Set(k, v)
	}
	if req.Stream && h.Get("Accept") == "" {
		h.Set("Accept", "text/event-stream")
	}
	if h.Get(headerRequestID) == "" {
		h.Set(headerRequestID, uuid.NewString())
	}
	return httpReq, body, nil
}

// encodeBody serializes the request body once so it can be signed.
func encodeBody(req *Request) ([]byte, string, error) {
	if len(req.Files) > 0 {
		fields, _ := req.Body.(map[string]string)
		return (&MultipartBody{Fields: fields, Files: req.Files}).encode()
	}
	switch v := req.Body.(type) {
	case nil:
		return nil, "", nil
	case *MultipartBody:
		return v.encode()
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "text/plain; charset=utf-8", nil
	case io.Reader:
		b, err := io.ReadAll(v)
		return b, "", err
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return b, "application/json", nil
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Close releases the adapter's own Session. A shared Session passed with
// WithSession is left open.
func (a *Adapter) Close(_ context.Context) error {
	if a.ownSession {
		return a.session.Close()
	}
	return nil
}
