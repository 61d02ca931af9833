package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/httpclient/sse"
	"github.com/kbukum/agentplatform/validation"
)

var errNoDiscriminator = errors.New("chat: frame payload has no event discriminator")

// DecodeEvent turns one stream frame into an Event. An inner "error" event
// becomes an *httpclient.APIError, which ends the stream. raw is the response
// the frame arrived on and may be nil.
func DecodeEvent(frame *sse.Event, raw *httpclient.RawResponse) (*Event, error) {
	var traceID string
	if raw != nil {
		traceID = raw.TraceID
	}
	data := []byte(frame.Data)
	if !gjson.ValidBytes(data) {
		return nil, decodeErr(fmt.Errorf("chat: %s frame is not valid JSON", frame.Event), data, traceID)
	}
	disc := gjson.GetBytes(data, "event")
	if disc.Type != gjson.String {
		return nil, decodeErr(errNoDiscriminator, data, traceID)
	}

	ev := &Event{Kind: EventKind(disc.Str), Label: frame.Event, Response: raw}
	if ev.Kind == EventError {
		return nil, streamError(data, traceID)
	}

	var err error
	switch eventPayloads[ev.Kind] {
	case payloadMessage:
		ev.Message, err = decodeRecord[Message](data)
	case payloadChat:
		ev.Chat, err = decodeRecord[Chat](data)
	case payloadKnowledge:
		ev.Knowledge, err = decodeRecord[Knowledge](data)
	}
	if err != nil {
		return nil, decodeErr(fmt.Errorf("chat: %s payload: %w", ev.Kind, err), data, traceID)
	}
	return ev, nil
}

func decodeRecord[T any](data []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	if err := validation.Struct(v); err != nil {
		return nil, err
	}
	return v, nil
}

// streamError builds the terminal error of an inner "error" event. The
// payload carries either code/msg or a bare message.
func streamError(data []byte, traceID string) error {
	doc := gjson.ParseBytes(data)
	msg := doc.Get("msg").String()
	if msg == "" {
		msg = doc.Get("message").String()
	}
	if msg == "" {
		msg = doc.Raw
	}
	return &httpclient.APIError{
		Code:    int(doc.Get("code").Int()),
		Message: msg,
		TraceID: traceID,
	}
}

func decodeErr(err error, data []byte, traceID string) error {
	snip := string(data)
	if len(snip) > 256 {
		snip = snip[:256] + "..."
	}
	return &httpclient.DecodeError{Index: -1, Snippet: snip, TraceID: traceID, Err: err}
}
