package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

type closeRecorder struct {
	io.Reader
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func body(s string) *closeRecorder {
	return &closeRecorder{Reader: strings.NewReader(s)}
}

func readAll(t *testing.T, r Reader) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error after %d events: %v", len(out), err)
		}
		out = append(out, *ev)
	}
}

func TestReader_DefaultDataField(t *testing.T) {
	r := NewReader(body("event: message\ndata: hello\n\ndata: second\n\n"))
	got := readAll(t, r)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Event != "message" || got[0].Data != "hello" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Event != "" || got[1].Data != "second" {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestReader_PlatformDataField(t *testing.T) {
	stream := "event:message\ndata:data: {\"event\":\"message\",\"answer\":\"hi\"}\n\n"
	r := NewReader(body(stream), WithDataField("data:data"))
	got := readAll(t, r)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Data != `{"event":"message","answer":"hi"}` {
		t.Errorf("data = %q", got[0].Data)
	}
}

func TestReader_IgnoresPlainDataWhenFieldOverridden(t *testing.T) {
	stream := "data: keepalive\n\nevent: message\ndata:data: {}\n\n"
	r := NewReader(body(stream), WithDataField("data:data"))
	got := readAll(t, r)
	if len(got) != 1 || got[0].Data != "{}" {
		t.Fatalf("expected only the data:data frame, got %+v", got)
	}
}

func TestReader_ValuesAreTrimmed(t *testing.T) {
	r := NewReader(body("event:   message  \r\ndata:  x \r\n\r\n"))
	got := readAll(t, r)
	if got[0].Event != "message" || got[0].Data != "x" {
		t.Errorf("unexpected event %+v", got[0])
	}
}

func TestReader_MultiLineData(t *testing.T) {
	r := NewReader(body("data: line1\ndata: line2\nid: 7\n\n"))
	got := readAll(t, r)
	if got[0].Data != "line1\nline2" || got[0].ID != "7" {
		t.Errorf("unexpected event %+v", got[0])
	}
}

func TestReader_CommentsAndBlankFramesSkipped(t *testing.T) {
	r := NewReader(body(": ping\n\n\n\nretry: 1000\n\ndata: x\n\n"))
	got := readAll(t, r)
	if len(got) != 1 || got[0].Data != "x" {
		t.Fatalf("expected one event, got %+v", got)
	}
}

func TestReader_TrailingPartialFrameDiscarded(t *testing.T) {
	r := NewReader(body("data: complete\n\nevent: message\ndata: partial"))
	got := readAll(t, r)
	if len(got) != 1 || got[0].Data != "complete" {
		t.Fatalf("expected only the complete frame, got %+v", got)
	}
}

func TestReader_LabelWithoutData(t *testing.T) {
	r := NewReader(body("event: message\n\n"))
	_, err := r.Next()
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestReader_RepeatedLabel(t *testing.T) {
	r := NewReader(body("event: a\nevent: b\ndata: x\n\n"))
	_, err := r.Next()
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestReader_LineTooLong(t *testing.T) {
	long := "data: " + strings.Repeat("a", 128) + "\n\n"
	r := NewReader(body(long), WithMaxLineSize(64))
	_, err := r.Next()
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("expected bufio.ErrTooLong, got %v", err)
	}
}

func TestReader_ChunkBoundariesDoNotMatter(t *testing.T) {
	stream := "event:message\ndata:data: {\"event\":\"message_start\"}\n\n" +
		"event:message\ndata:data: {\"event\":\"message\",\"answer\":\"h\"}\n\n" +
		"event:message\ndata:data: {\"event\":\"message_end\",\"answer\":\"hi\"}\n\n"

	want := readAll(t, NewReader(body(stream), WithDataField("data:data")))
	if len(want) != 3 {
		t.Fatalf("expected 3 events, got %d", len(want))
	}

	readers := map[string]io.Reader{
		"one byte": iotest.OneByteReader(strings.NewReader(stream)),
		"half":     iotest.HalfReader(strings.NewReader(stream)),
		"data err": iotest.DataErrReader(strings.NewReader(stream)),
	}
	for name, src := range readers {
		t.Run(name, func(t *testing.T) {
			got := readAll(t, NewReader(&closeRecorder{Reader: src}, WithDataField("data:data")))
			if len(got) != len(want) {
				t.Fatalf("got %d events, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestReader_Close(t *testing.T) {
	b := body("data: x\n\n")
	r := NewReader(b)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b.closed != 1 {
		t.Errorf("expected body closed once, got %d", b.closed)
	}
}
