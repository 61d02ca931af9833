// Package sse frames a line-oriented event-stream body into events.
//
// The agent platform prefixes its payload lines with "data:data:" rather
// than the usual "data:", so the data field name is configurable.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// DefaultMaxLineSize bounds a single line of the stream.
const DefaultMaxLineSize = 1 << 20

// ErrMalformedFrame reports a frame that cannot be turned into an Event.
var ErrMalformedFrame = errors.New("sse: malformed frame")

// Event is one frame of the stream.
type Event struct {
	// Event is the frame label from the "event" field. Empty for data-only frames.
	Event string
	// Data is the payload. Repeated data lines are joined with "\n".
	Data string
	// ID is the "id" field, if the server sends one.
	ID string
}

// Reader reads events from a stream.
type Reader interface {
	// Next returns the next event, or io.EOF when the stream ends. Data left
	// in an unterminated trailing frame is discarded.
	Next() (*Event, error)
	// Close releases the underlying body.
	Close() error
}

// Option configures a Reader.
type Option func(*reader)

// WithDataField sets the field name carrying the payload. Default "data".
func WithDataField(name string) Option {
	return func(r *reader) { r.dataField = name }
}

// WithMaxLineSize overrides DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(r *reader) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

type reader struct {
	scanner   *bufio.Scanner
	body      io.ReadCloser
	dataField string
	maxLine   int
	fields    []string
}

// NewReader creates a Reader over body.
func NewReader(body io.ReadCloser, opts ...Option) Reader {
	r := &reader{body: body, dataField: "data", maxLine: DefaultMaxLineSize}
	for _, opt := range opts {
		opt(r)
	}
	r.scanner = bufio.NewScanner(body)
	// Scanner accepts tokens up to max(cap(buf), maxLine).
	r.scanner.Buffer(make([]byte, 0, min(4096, r.maxLine)), r.maxLine)

	// Longest name first so "data:data" wins over "data".
	r.fields = []string{"event", "id", r.dataField}
	sort.SliceStable(r.fields, func(i, j int) bool { return len(r.fields[i]) > len(r.fields[j]) })
	return r
}

func (r *reader) Next() (*Event, error) {
	var (
		ev       Event
		seen     bool
		hasData  bool
		hasLabel bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if !seen {
				continue
			}
			if !hasData {
				return nil, fmt.Errorf("%w: event %q has no %s field", ErrMalformedFrame, ev.Event, r.dataField)
			}
			return &ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := r.parseLine(line)
		if !ok {
			continue
		}
		seen = true
		switch field {
		case r.dataField:
			if hasData {
				ev.Data += "\n" + value
			} else {
				ev.Data = value
				hasData = true
			}
		case "event":
			if hasLabel {
				return nil, fmt.Errorf("%w: repeated event field", ErrMalformedFrame)
			}
			ev.Event = value
			hasLabel = true
		case "id":
			ev.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *reader) Close() error {
	return r.body.Close()
}

// parseLine matches line against the recognized fields. The value is the
// rest of the line after "<field>:", trimmed.
func (r *reader) parseLine(line string) (field, value string, ok bool) {
	for _, f := range r.fields {
		if len(line) > len(f) && line[len(f)] == ':' && strings.HasPrefix(line, f) {
			return f, strings.TrimSpace(line[len(f)+1:]), true
		}
	}
	return "", "", false
}
