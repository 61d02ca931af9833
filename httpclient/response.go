package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
)

// ContentKind is the classifier's decision for a response.
type ContentKind int

const (
	ContentStructured ContentKind = iota
	ContentStream
	ContentFile
)

func (k ContentKind) String() string {
	switch k {
	case ContentStream:
		return "stream"
	case ContentFile:
		return "file"
	default:
		return "structured"
	}
}

// classify picks the handling path from a Content-Type header. Event streams
// win over binary markers, which win over structured bodies.
func classify(contentType string, markers []string) ContentKind {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "event-stream") {
		return ContentStream
	}
	for _, m := range markers {
		if m != "" && strings.Contains(ct, strings.ToLower(m)) {
			return ContentFile
		}
	}
	return ContentStructured
}

// RawResponse is the status line and headers of a platform response.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	TraceID    string
}

func newRawResponse(resp *http.Response, traceHeader string) *RawResponse {
	return &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		TraceID:    resp.Header.Get(traceHeader),
	}
}

// closer runs a body close plus release hooks exactly once.
type closer struct {
	once    sync.Once
	body    io.Closer
	release []func() error
	err     error
}

func (c *closer) addRelease(fn func() error) {
	if fn != nil {
		c.release = append(c.release, fn)
	}
}

func (c *closer) Close() error {
	c.once.Do(func() {
		if c.body != nil {
			c.err = c.body.Close()
		}
		for _, fn := range c.release {
			if err := fn(); err != nil && c.err == nil {
				c.err = err
			}
		}
	})
	return c.err
}

// FileResponse is a binary body, such as synthesized audio. The caller owns
// it and must Close it.
type FileResponse struct {
	*RawResponse
	ContentType string

	body   io.Reader
	closer *closer
}

// Read reads the raw body.
func (f *FileResponse) Read(p []byte) (int, error) {
	return f.body.Read(p)
}

// WriteTo copies the remaining body to w.
func (f *FileResponse) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, f.body)
}

// SaveTo writes the body to path and closes the response.
func (f *FileResponse) SaveTo(path string) error {
	defer func() { _ = f.Close() }()
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("httpclient: save file: %w", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		_ = out.Close()
		return &TransportError{Err: fmt.Errorf("read file body: %w", err)}
	}
	return out.Close()
}

// Close releases the connection. Safe to call more than once.
func (f *FileResponse) Close() error {
	return f.closer.Close()
}
