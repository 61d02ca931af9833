package httpclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"

	"github.com/kbukum/agentplatform/httpclient/sse"
	"github.com/kbukum/agentplatform/logger"
	"github.com/kbukum/agentplatform/observability"
)

// StreamBody is the undecoded event stream of a response. It yields frames
// in wire order and releases the connection exactly once.
type StreamBody struct {
	*RawResponse
	reader  sse.Reader
	closer  *closer
	log     *logger.Logger
	metrics *observability.ClientMetrics
	ctx     context.Context
}

func newStreamBody(ctx context.Context, raw *RawResponse, body io.ReadCloser, cfg *Config, log *logger.Logger, m *observability.ClientMetrics) *StreamBody {
	r := sse.NewReader(body,
		sse.WithDataField(cfg.StreamDataField),
		sse.WithMaxLineSize(cfg.MaxLineSize))
	if log == nil {
		log = logger.Nop()
	}
	return &StreamBody{
		RawResponse: raw,
		reader:      r,
		closer:      &closer{body: r},
		log:         log,
		metrics:     m,
		ctx:         ctx,
	}
}

// Next returns the next frame or io.EOF. Framing problems are *DecodeError
// and read failures are *TransportError.
func (b *StreamBody) Next() (*sse.Event, error) {
	ev, err := b.reader.Next()
	switch {
	case err == nil:
		b.metrics.RecordStreamEvent(b.ctx, ev.Event)
		return ev, nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, sse.ErrMalformedFrame), errors.Is(err, bufio.ErrTooLong):
		return nil, newDecodeError(err, b.TraceID)
	default:
		return nil, &TransportError{Err: fmt.Errorf("read event stream: %w", err)}
	}
}

// Close releases the connection and any session acquired for this call.
func (b *StreamBody) Close() error {
	return b.closer.Close()
}

func (b *StreamBody) addRelease(fn func() error) {
	b.closer.addRelease(fn)
}

// FrameHandler turns one frame into a typed value. raw is the response the
// stream belongs to; handlers may keep it and use its TraceID for errors.
type FrameHandler[T any] func(ev *sse.Event, raw *RawResponse) (T, error)

// Item is one element delivered by Stream.Events.
type Item[T any] struct {
	Value T
	Err   error
}

// Stream is a single-consumer, forward-only sequence of decoded events.
// Any error ends it and closes the connection; so does exhaustion.
type Stream[T any] struct {
	body   *StreamBody
	handle FrameHandler[T]
	done   bool
	err    error
	// abandoned is set when the consumer cancels Events.
	abandoned atomic.Bool
}

// NewStream decodes body with handle.
func NewStream[T any](body *StreamBody, handle FrameHandler[T]) *Stream[T] {
	return &Stream[T]{body: body, handle: handle}
}

// Next returns the next value, io.EOF at the end of the stream, or the
// terminal error. After the first error every call returns it again.
func (s *Stream[T]) Next() (T, error) {
	var zero T
	if s.done {
		return zero, s.err
	}

	ev, err := s.body.Next()
	if err != nil {
		return zero, s.finish(err)
	}
	v, err := s.handle(ev, s.body.RawResponse)
	if err != nil {
		return zero, s.finish(err)
	}
	return v, nil
}

func (s *Stream[T]) finish(err error) error {
	s.done = true
	s.err = err
	_ = s.body.Close()
	if !errors.Is(err, io.EOF) && !s.cancelled() {
		s.body.log.Warn("event stream terminated", logger.Fields(
			logger.FieldTraceID, s.body.TraceID,
			logger.FieldError, err,
		))
		s.body.metrics.RecordError(s.body.ctx, KindOf(err).String())
	}
	return err
}

// cancelled reports whether the consumer walked away, in which case the
// read error that follows is not a failure.
func (s *Stream[T]) cancelled() bool {
	return s.abandoned.Load() || s.body.ctx.Err() != nil
}

// All ranges over the remaining values. The connection is released when the
// loop ends, whether by exhaustion, error, or break. A terminal error is
// yielded once as the final pair.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer func() { _ = s.Close() }()
		for {
			v, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Events delivers the remaining values on a channel from a new goroutine.
// The channel closes after the last value or the terminal error. Cancelling
// ctx stops delivery and releases the connection.
func (s *Stream[T]) Events(ctx context.Context) <-chan Item[T] {
	ch := make(chan Item[T])
	go func() {
		defer close(ch)
		stop := context.AfterFunc(ctx, func() {
			s.abandoned.Store(true)
			_ = s.body.Close()
		})
		defer stop()
		defer func() { _ = s.Close() }()
		for {
			v, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if ctx.Err() != nil {
				return
			}
			select {
			case ch <- Item[T]{Value: v, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// Close releases the connection. Safe to call more than once and
// concurrently with a blocked Next.
func (s *Stream[T]) Close() error {
	return s.body.Close()
}

// TraceID returns the server trace id of the stream response.
func (s *Stream[T]) TraceID() string {
	return s.body.TraceID
}

// Response returns the status and headers of the stream response.
func (s *Stream[T]) Response() *RawResponse {
	return s.body.RawResponse
}
