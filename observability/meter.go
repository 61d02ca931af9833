package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/agentplatform/logger"
)

// InitMeter installs a periodic OTLP/HTTP meter provider globally.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("observability: metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Debug("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.MetricInterval.String(),
	))
	return mp, nil
}

// Meter returns the package meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// ClientMetrics holds the instruments recorded by the transport adapter.
type ClientMetrics struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	inflight     metric.Int64UpDownCounter
	streamEvents metric.Int64Counter
	failures     metric.Int64Counter
}

// NewClientMetrics creates the client instruments on meter.
func NewClientMetrics(meter metric.Meter) (*ClientMetrics, error) {
	var (
		m   ClientMetrics
		err error
	)
	if m.requests, err = meter.Int64Counter("agentplatform.client.requests",
		metric.WithDescription("Dispatched requests by method and outcome")); err != nil {
		return nil, fmt.Errorf("observability: requests counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("agentplatform.client.duration",
		metric.WithDescription("Time until response headers arrive"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("observability: duration histogram: %w", err)
	}
	if m.inflight, err = meter.Int64UpDownCounter("agentplatform.client.inflight",
		metric.WithDescription("Requests awaiting response headers")); err != nil {
		return nil, fmt.Errorf("observability: inflight counter: %w", err)
	}
	if m.streamEvents, err = meter.Int64Counter("agentplatform.client.stream_events",
		metric.WithDescription("Decoded stream events by name")); err != nil {
		return nil, fmt.Errorf("observability: stream events counter: %w", err)
	}
	if m.failures, err = meter.Int64Counter("agentplatform.client.errors",
		metric.WithDescription("Failures by error kind")); err != nil {
		return nil, fmt.Errorf("observability: errors counter: %w", err)
	}
	return &m, nil
}

func (m *ClientMetrics) requestStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.inflight.Add(ctx, 1)
}

func (m *ClientMetrics) requestEnded(ctx context.Context, method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inflight.Add(ctx, -1)
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("method", method)))
}

// RecordStreamEvent counts one decoded stream event.
func (m *ClientMetrics) RecordStreamEvent(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.streamEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
}

// RecordError counts a failure of the given kind (api, auth, transport, decode).
func (m *ClientMetrics) RecordError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
