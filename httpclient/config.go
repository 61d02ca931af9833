package httpclient

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/agentplatform/httpclient/sse"
	"github.com/kbukum/agentplatform/security"
	"github.com/kbukum/agentplatform/version"
)

const (
	// DefaultTraceHeader carries the platform log id.
	DefaultTraceHeader = "X-Tt-Logid"
	// DefaultDataField is the body key holding a success payload.
	DefaultDataField = "data"
	// DefaultStreamDataField is the frame field holding a stream payload.
	DefaultStreamDataField = "data:data"

	defaultReadIdleTimeout = 30 * time.Second
	defaultPingTimeout     = 15 * time.Second
)

// DefaultBinaryMarkers are Content-Type substrings returned as a FileResponse.
var DefaultBinaryMarkers = []string{"audio"}

// Config configures the transport adapter.
type Config struct {
	// BaseURL is joined with relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds a whole exchange. Zero means none; callers normally
	// put their deadline on the context instead.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are sent with every request; request headers override them.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// TraceHeader names the response header holding the server trace id.
	TraceHeader string `yaml:"trace_header" mapstructure:"trace_header"`

	// BinaryMarkers select the FileResponse path by Content-Type substring.
	BinaryMarkers []string `yaml:"binary_markers" mapstructure:"binary_markers"`

	// StreamDataField is the event-stream field carrying the payload.
	StreamDataField string `yaml:"stream_data_field" mapstructure:"stream_data_field"`

	// MaxLineSize bounds a single event-stream line.
	MaxLineSize int `yaml:"max_line_size" mapstructure:"max_line_size"`

	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`

	// DisableHTTP2 keeps the transport on HTTP/1.1.
	DisableHTTP2 bool `yaml:"disable_http2" mapstructure:"disable_http2"`

	// HTTP2ReadIdleTimeout is how long an idle HTTP/2 connection waits
	// before sending a health-check ping.
	HTTP2ReadIdleTimeout time.Duration `yaml:"http2_read_idle_timeout" mapstructure:"http2_read_idle_timeout"`

	// Instrument wraps the transport with OpenTelemetry client tracing.
	Instrument bool `yaml:"instrument" mapstructure:"instrument"`

	// DedicatedAsyncSession gives each SendAsync call its own connection
	// pool, released together with the call's result.
	DedicatedAsyncSession bool `yaml:"dedicated_async_session" mapstructure:"dedicated_async_session"`

	// Credential authorizes every request. Nil sends requests unauthenticated.
	Credential Credential `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.TraceHeader == "" {
		c.TraceHeader = DefaultTraceHeader
	}
	if c.UserAgent == "" {
		c.UserAgent = version.UserAgent()
	}
	if len(c.BinaryMarkers) == 0 {
		c.BinaryMarkers = DefaultBinaryMarkers
	}
	if c.StreamDataField == "" {
		c.StreamDataField = DefaultStreamDataField
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = sse.DefaultMaxLineSize
	}
	if c.HTTP2ReadIdleTimeout == 0 {
		c.HTTP2ReadIdleTimeout = defaultReadIdleTimeout
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("httpclient: timeout must not be negative")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("httpclient: base_url %q must be an absolute URL", c.BaseURL)
		}
	}
	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return fmt.Errorf("httpclient: %w", err)
		}
	}
	return nil
}
