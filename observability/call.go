package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrMethod     = "http.request.method"
	AttrURL        = "url.full"
	AttrStatusCode = "http.response.status_code"
	AttrTraceID    = "agentplatform.trace_id"
	AttrRequestID  = "agentplatform.request_id"
	AttrOutcome    = "agentplatform.outcome"
)

// SpanSend is the span name for a single dispatched request.
const SpanSend = "agentplatform.send"

// Call tracks one request from dispatch until its headers are classified.
type Call struct {
	span    trace.Span
	metrics *ClientMetrics
	method  string
	start   time.Time
	ended   bool
}

// StartCall opens a client span and marks the request in flight. metrics may
// be nil.
func StartCall(ctx context.Context, metrics *ClientMetrics, method, url string) (context.Context, *Call) {
	ctx, span := StartSpan(ctx, SpanSend,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrMethod, method),
			attribute.String(AttrURL, url),
		))
	metrics.requestStarted(ctx)
	return ctx, &Call{span: span, metrics: metrics, method: method, start: time.Now()}
}

// Annotate adds string attributes to the call span; empty values are skipped.
func (c *Call) Annotate(kv ...string) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			c.span.SetAttributes(attribute.String(kv[i], kv[i+1]))
		}
	}
}

// End closes the span and records the request. outcome is a short label such
// as "ok", "stream", "api_error". Calling End twice is a no-op.
func (c *Call) End(ctx context.Context, status int, outcome string, err error) {
	if c.ended {
		return
	}
	c.ended = true
	if status > 0 {
		c.span.SetAttributes(attribute.Int(AttrStatusCode, status))
	}
	c.span.SetAttributes(attribute.String(AttrOutcome, outcome))
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordError(ctx, outcome)
	}
	c.span.End()
	c.metrics.requestEnded(ctx, c.method, outcome, time.Since(c.start))
}

// Elapsed returns the time since StartCall.
func (c *Call) Elapsed() time.Duration {
	return time.Since(c.start)
}
