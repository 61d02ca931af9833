package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("agentchat")
	if cfg.ServiceName != "agentchat" || cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{SampleRate: 1.5}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
	cfg = Config{}
	cfg.ApplyDefaults()
	if cfg.ServiceName == "" || cfg.SampleRate != 1.0 || cfg.MetricInterval == 0 {
		t.Errorf("ApplyDefaults left zero values: %+v", cfg)
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned %v", err)
	}
}

func TestSampler(t *testing.T) {
	if got := sampler(0).Description(); got != sdktrace.NeverSample().Description() {
		t.Errorf("rate 0 sampler = %s", got)
	}
	if got := sampler(0.5).Description(); got == sdktrace.NeverSample().Description() {
		t.Errorf("rate 0.5 should not be NeverSample")
	}
}

func TestStartCall_RecordsSpan(t *testing.T) {
	rec := installRecorder(t)

	ctx, call := StartCall(context.Background(), nil, "POST", "https://api.example.com/v3/chat")
	call.Annotate(AttrTraceID, "log-1", AttrRequestID, "")
	call.End(ctx, 200, "ok", nil)
	call.End(ctx, 500, "api_error", errors.New("ignored"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != SpanSend {
		t.Errorf("span name = %q", s.Name())
	}
	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[AttrTraceID] != "log-1" {
		t.Errorf("trace id attribute = %q", attrs[AttrTraceID])
	}
	if _, ok := attrs[AttrRequestID]; ok {
		t.Error("empty request id should not be recorded")
	}
	if attrs[AttrStatusCode] != "200" || attrs[AttrOutcome] != "ok" {
		t.Errorf("unexpected attributes: %v", attrs)
	}
	if s.Status().Code == codes.Error {
		t.Error("second End must not change the span")
	}
}

func TestStartCall_RecordsError(t *testing.T) {
	rec := installRecorder(t)

	ctx, call := StartCall(context.Background(), nil, "GET", "https://api.example.com")
	call.End(ctx, 0, "transport_error", errors.New("connection refused"))

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status())
	}
	if len(s.Events()) == 0 {
		t.Error("expected recorded exception event")
	}
}

func TestClientMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewClientMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewClientMetrics: %v", err)
	}

	ctx, call := StartCall(context.Background(), m, "POST", "http://localhost")
	call.End(ctx, 200, "stream", nil)
	m.RecordStreamEvent(ctx, "message")
	m.RecordStreamEvent(ctx, "message")
	m.RecordError(ctx, "decode_error")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if data, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	if sums["agentplatform.client.requests"] != 1 {
		t.Errorf("requests = %d", sums["agentplatform.client.requests"])
	}
	if sums["agentplatform.client.inflight"] != 0 {
		t.Errorf("inflight = %d", sums["agentplatform.client.inflight"])
	}
	if sums["agentplatform.client.stream_events"] != 2 {
		t.Errorf("stream_events = %d", sums["agentplatform.client.stream_events"])
	}
	if sums["agentplatform.client.errors"] != 1 {
		t.Errorf("errors = %d", sums["agentplatform.client.errors"])
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *ClientMetrics
	m.RecordStreamEvent(context.Background(), "x")
	m.RecordError(context.Background(), "api_error")
}
