package config

import (
	"errors"
	"time"

	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/logger"
	"github.com/kbukum/agentplatform/observability"
	"github.com/kbukum/agentplatform/security"
	"github.com/kbukum/agentplatform/validation"
)

// AppName is the default application name used for file lookup.
const AppName = "agentchat"

// ClientConfig is the settings file of a platform client.
//
//	base_url: https://agent.example.com
//	token: ${AGENTPLATFORM_TOKEN}
//	user_id: u-1
//	app_key: ak-1
//	timeout: 60s
//	logging:
//	  level: debug
type ClientConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url" validate:"required,url"`

	// Token selects bearer authentication.
	Token string `yaml:"token" mapstructure:"token" json:"token"`

	// AccessKey and SecretKey select signed authentication.
	AccessKey string `yaml:"access_key" mapstructure:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key" json:"secret_key"`
	Region    string `yaml:"region" mapstructure:"region" json:"region"`
	Service   string `yaml:"service" mapstructure:"service" json:"service"`

	UserID string `yaml:"user_id" mapstructure:"user_id" json:"user_id"`
	AppKey string `yaml:"app_key" mapstructure:"app_key" json:"app_key"`

	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout" validate:"gte=0"`
	TraceHeader string        `yaml:"trace_header" mapstructure:"trace_header" json:"trace_header"`

	DisableHTTP2          bool `yaml:"disable_http2" mapstructure:"disable_http2" json:"disable_http2"`
	DedicatedAsyncSession bool `yaml:"dedicated_async_session" mapstructure:"dedicated_async_session" json:"dedicated_async_session"`

	Tracing observability.Config `yaml:"tracing" mapstructure:"tracing" json:"tracing"`
	TLS     *security.TLSConfig  `yaml:"tls" mapstructure:"tls" json:"tls"`
	Logging logger.Config        `yaml:"logging" mapstructure:"logging" json:"logging"`
}

// Auth modes chosen from the declared credential fields.
const (
	AuthNone   = ""
	AuthBearer = string(httpclient.SchemeBearer)
	AuthSigned = string(httpclient.SchemeSigned)
)

const (
	defaultRegion  = "cn-north-1"
	defaultService = "air"
)

// ApplyDefaults fills in zero-value fields.
func (c *ClientConfig) ApplyDefaults() {
	if c.TraceHeader == "" {
		c.TraceHeader = httpclient.DefaultTraceHeader
	}
	if c.AuthMode() == AuthSigned {
		if c.Region == "" {
			c.Region = defaultRegion
		}
		if c.Service == "" {
			c.Service = defaultService
		}
	}
	c.Logging.ApplyDefaults()
	if c.Tracing.Enabled {
		c.Tracing.ApplyDefaults()
	}
}

// AuthMode reports which credential the declared fields select.
func (c *ClientConfig) AuthMode() string {
	switch {
	case c.AccessKey != "" || c.SecretKey != "":
		return AuthSigned
	case c.Token != "":
		return AuthBearer
	default:
		return AuthNone
	}
}

// Validate checks field constraints and credential consistency.
func (c *ClientConfig) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}

	v := validation.New()
	if c.Token != "" && c.AccessKey != "" {
		v.Add("token", "cannot be combined with access_key")
	}
	if c.AuthMode() == AuthSigned {
		v.Required("access_key", c.AccessKey).
			Required("secret_key", c.SecretKey).
			Required("region", c.Region).
			Required("service", c.Service)
	}
	if err := c.Logging.Validate(); err != nil {
		v.Add("logging", err.Error())
	}
	if err := c.Tracing.Validate(); err != nil {
		v.Add("tracing", err.Error())
	}
	if err := c.TLS.Validate(); err != nil {
		v.Add("tls", err.Error())
	}
	return v.Err()
}

// ErrNoCredential is returned by Credential when no auth fields are set.
var ErrNoCredential = errors.New("config: no credential configured")

// Credential builds the authentication strategy named by AuthMode.
func (c *ClientConfig) Credential() (httpclient.Credential, error) {
	switch c.AuthMode() {
	case AuthBearer:
		return httpclient.BearerAuth(c.Token), nil
	case AuthSigned:
		return &httpclient.SignedAuth{
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Region:    c.Region,
			Service:   c.Service,
		}, nil
	default:
		return nil, ErrNoCredential
	}
}

// HTTP returns the transport settings. A missing credential leaves
// Credential nil so requests go out unauthenticated.
func (c *ClientConfig) HTTP() httpclient.Config {
	cred, _ := c.Credential()
	return httpclient.Config{
		BaseURL:               c.BaseURL,
		Timeout:               c.Timeout,
		TraceHeader:           c.TraceHeader,
		TLS:                   c.TLS,
		DisableHTTP2:          c.DisableHTTP2,
		Instrument:            c.Tracing.Enabled,
		DedicatedAsyncSession: c.DedicatedAsyncSession,
		Credential:            cred,
	}
}

// Load reads, defaults and validates a ClientConfig for app.
func Load(app string, opts ...LoaderOption) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := LoadInto(app, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
