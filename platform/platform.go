// Package platform is the entry point of the client: it owns the transport
// built from a config.ClientConfig and hands out the API clients that share
// it.
package platform

import (
	"context"
	"errors"
	"sync"

	"github.com/kbukum/agentplatform/chat"
	"github.com/kbukum/agentplatform/config"
	"github.com/kbukum/agentplatform/conversation"
	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/logger"
	"github.com/kbukum/agentplatform/observability"
)

// Client owns one Adapter. Close it when done.
type Client struct {
	cfg      *config.ClientConfig
	adapter  *httpclient.Adapter
	log      *logger.Logger
	shutdown func(context.Context) error

	chatOnce sync.Once
	chat     *chat.Client
	convOnce sync.Once
	conv     *conversation.Client

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	adapterOpts []httpclient.Option
	log         *logger.Logger
}

// Option configures a Client.
type Option func(*options)

// WithAdapterOptions passes options to the underlying Adapter.
func WithAdapterOptions(opts ...httpclient.Option) Option {
	return func(o *options) { o.adapterOpts = append(o.adapterOpts, opts...) }
}

// WithLogger sets the logger shared with the Adapter.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New builds a Client from cfg. With tracing enabled it installs the OTLP
// providers and records client metrics; Close flushes them.
func New(ctx context.Context, cfg *config.ClientConfig, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.WithComponent("platform")
	}

	c := &Client{cfg: cfg, log: o.log, shutdown: func(context.Context) error { return nil }}
	adapterOpts := []httpclient.Option{httpclient.WithLogger(o.log.WithComponent("httpclient"))}
	if cfg.Tracing.Enabled {
		shutdown, err := observability.Init(ctx, cfg.Tracing)
		if err != nil {
			return nil, err
		}
		c.shutdown = shutdown
		m, err := observability.NewClientMetrics(observability.Meter())
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		adapterOpts = append(adapterOpts, httpclient.WithMetrics(m))
	}

	a, err := httpclient.New(cfg.HTTP(), append(adapterOpts, o.adapterOpts...)...)
	if err != nil {
		_ = c.shutdown(ctx)
		return nil, err
	}
	c.adapter = a

	o.log.Debug("platform client ready", logger.Fields(
		"base_url", cfg.BaseURL,
		"auth", cfg.AuthMode(),
		"tracing", cfg.Tracing.Enabled,
	))
	return c, nil
}

// Adapter returns the shared transport, for calls without a typed client.
func (c *Client) Adapter() *httpclient.Adapter {
	return c.adapter
}

// Config returns the effective configuration.
func (c *Client) Config() *config.ClientConfig {
	return c.cfg
}

// UserID is the configured default user.
func (c *Client) UserID() string {
	return c.cfg.UserID
}

// Chat returns the chat client.
func (c *Client) Chat() *chat.Client {
	c.chatOnce.Do(func() { c.chat = chat.New(c.adapter) })
	return c.chat
}

// Conversations returns the conversation client. It sends the configured
// app key by default.
func (c *Client) Conversations() *conversation.Client {
	c.convOnce.Do(func() {
		c.conv = conversation.New(c.adapter, conversation.WithAppKey(c.cfg.AppKey))
	})
	return c.conv
}

// Close releases the transport and flushes telemetry. Later calls return
// the first result.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = errors.Join(c.adapter.Close(ctx), c.shutdown(ctx))
	})
	return c.closeErr
}
