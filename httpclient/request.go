package httpclient

import (
	"fmt"
	"net/http"
	"strings"
)

// ResultKind is the shape a structured success payload is decoded into.
type ResultKind int

const (
	// ResultNone leaves the payload raw. Required for streaming requests.
	ResultNone ResultKind = iota
	// ResultSingle decodes one record.
	ResultSingle
	// ResultList decodes a plain sequence of records.
	ResultList
	// ResultPage decodes a sequence with a first/last id cursor.
	ResultPage
	// ResultFile expects a binary body.
	ResultFile
)

func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "none"
	case ResultSingle:
		return "single"
	case ResultList:
		return "list"
	case ResultPage:
		return "page"
	case ResultFile:
		return "file"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Request describes one platform call.
type Request struct {
	// Method is the upper-case HTTP method.
	Method string
	// Path is joined with Config.BaseURL unless it is an absolute URL.
	Path    string
	Query   map[string]string
	Headers map[string]string
	// Body is JSON-encoded unless it is []byte, string or a *MultipartBody.
	// With Files set it must be nil or a map[string]string of form fields.
	Body  any
	Files []FileField
	// Kind selects the typed decoding applied to a structured success body.
	Kind ResultKind
	// DataField is the body key holding the payload. A dotted path such as
	// "data.data" unwraps nested levels.
	DataField string
	// Stream marks a request whose response is an event stream.
	Stream bool
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// NewRequest builds a Request. It performs no validation and no I/O.
func NewRequest(method, path string, opts ...RequestOption) *Request {
	r := &Request{
		Method:    strings.ToUpper(method),
		Path:      path,
		DataField: DefaultDataField,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithQuery sets a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = make(map[string]string)
		}
		r.Query[key] = value
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithBody sets the request body.
func WithBody(body any) RequestOption {
	return func(r *Request) { r.Body = body }
}

// WithFiles attaches files; the request is sent as multipart/form-data.
func WithFiles(files ...FileField) RequestOption {
	return func(r *Request) { r.Files = append(r.Files, files...) }
}

// WithResult sets the expected result kind.
func WithResult(kind ResultKind) RequestOption {
	return func(r *Request) { r.Kind = kind }
}

// WithDataField overrides the payload key.
func WithDataField(field string) RequestOption {
	return func(r *Request) { r.DataField = field }
}

// WithStream marks the request as streaming.
func WithStream() RequestOption {
	return func(r *Request) { r.Stream = true }
}

// Validate checks the descriptor invariants.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions:
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, r.Method)
	}
	if r.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRequest)
	}
	if r.Stream && r.Kind != ResultNone {
		return fmt.Errorf("%w: streaming request cannot expect a %s result", ErrInvalidRequest, r.Kind)
	}
	if r.Kind < ResultNone || r.Kind > ResultFile {
		return fmt.Errorf("%w: unknown result kind %d", ErrInvalidRequest, int(r.Kind))
	}
	if len(r.Files) > 0 {
		switch r.Body.(type) {
		case nil, map[string]string:
		default:
			return fmt.Errorf("%w: body must be form fields when files are attached", ErrInvalidRequest)
		}
	}
	if strings.TrimSpace(r.DataField) == "" {
		return fmt.Errorf("%w: empty data field", ErrInvalidRequest)
	}
	return nil
}
