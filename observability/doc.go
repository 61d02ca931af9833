// Package observability wires OpenTelemetry tracing and metrics for the
// agent platform client.
//
//	shutdown, err := observability.Init(ctx, cfg)
//	defer shutdown(ctx)
//
// Every dispatched request is wrapped in a Call, which owns the client span
// and records request metrics when it ends:
//
//	ctx, call := observability.StartCall(ctx, metrics, "POST", url)
//	defer call.End(status, err)
package observability
