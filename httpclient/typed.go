package httpclient

import (
	"context"
	"fmt"
)

// Call sends req and decodes one record from the structured payload.
func Call[T any](ctx context.Context, a *Adapter, req *Request) (T, error) {
	var zero T
	res, err := a.Send(ctx, req)
	if err != nil {
		return zero, err
	}
	defer func() { _ = res.Close() }()
	return DecodeSingle[T](res)
}

// CallList sends req and decodes a list payload.
func CallList[T any](ctx context.Context, a *Adapter, req *Request) ([]T, error) {
	res, err := a.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close() }()
	return DecodeList[T](res)
}

// CallPage sends req and decodes a page envelope.
func CallPage[T any](ctx context.Context, a *Adapter, req *Request) (*Page[T], error) {
	res, err := a.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Close() }()
	return DecodePage[T](res)
}

// OpenStream sends a streaming request and wraps the body with handle.
// The caller owns the returned Stream and must drain or Close it.
func OpenStream[T any](ctx context.Context, a *Adapter, req *Request, handle FrameHandler[T]) (*Stream[T], error) {
	res, err := a.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	return asStream(res, handle)
}

// AwaitStream is OpenStream for a request started with SendAsync.
func AwaitStream[T any](ctx context.Context, p *Pending, handle FrameHandler[T]) (*Stream[T], error) {
	res, err := p.Await(ctx)
	if err != nil {
		return nil, err
	}
	return asStream(res, handle)
}

// asStream closes a response that is not an event stream and reports it as a
// *DecodeError.
func asStream[T any](res *Result, handle FrameHandler[T]) (*Stream[T], error) {
	if res.Stream == nil {
		_ = res.Close()
		return nil, newDecodeError(fmt.Errorf("expected an event stream, got a %s response", res.Content), res.traceID())
	}
	return NewStream(res.Stream, handle), nil
}
