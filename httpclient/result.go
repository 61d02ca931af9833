package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kbukum/agentplatform/validation"
)

// Result is the outcome of a successful Send. Exactly one of Payload, File
// or Stream is meaningful, depending on Content.
type Result struct {
	*RawResponse
	Content ContentKind
	Kind    ResultKind

	// Payload is the extracted success payload of a structured body.
	Payload json.RawMessage
	// Cursor is set for page envelopes.
	Cursor    *Cursor
	DebugURL  string
	ExecuteID string

	File   *FileResponse
	Stream *StreamBody
}

// Close releases the file or stream body, if any. Structured results hold no
// connection and Close is a no-op for them.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	switch {
	case r.File != nil:
		return r.File.Close()
	case r.Stream != nil:
		return r.Stream.Close()
	}
	return nil
}

// Page is a batch of records with its cursor.
type Page[T any] struct {
	Items   []T    `json:"items"`
	FirstID string `json:"first_id"`
	LastID  string `json:"last_id"`
	HasMore bool   `json:"has_more"`
}

// DebugInfo accompanies payloads returned with a debug envelope.
type DebugInfo struct {
	DebugURL  string `json:"debug_url"`
	ExecuteID string `json:"execute_id,omitempty"`
}

// Debug returns the debug envelope fields, or nil when absent.
func (r *Result) Debug() *DebugInfo {
	if r.DebugURL == "" && r.ExecuteID == "" {
		return nil
	}
	return &DebugInfo{DebugURL: r.DebugURL, ExecuteID: r.ExecuteID}
}

var errNotStructured = errors.New("result has no structured payload")

func (r *Result) traceID() string {
	if r == nil || r.RawResponse == nil {
		return ""
	}
	return r.RawResponse.TraceID
}

// DecodeSingle decodes the payload into one validated record.
func DecodeSingle[T any](r *Result) (T, error) {
	var zero T
	if r == nil || r.Content != ContentStructured {
		return zero, newDecodeError(errNotStructured, r.traceID())
	}
	v, err := decodeElement[T](r.Payload)
	if err != nil {
		err.TraceID = r.traceID()
		return zero, err
	}
	return v, nil
}

// DecodeList decodes the payload as an array. Any element that fails to
// decode or validate fails the whole list.
func DecodeList[T any](r *Result) ([]T, error) {
	if r == nil || r.Content != ContentStructured {
		return nil, newDecodeError(errNotStructured, r.traceID())
	}
	return decodeList[T](r.Payload, r.traceID())
}

// DecodePage decodes a page envelope. The payload must have come with a
// cursor.
func DecodePage[T any](r *Result) (*Page[T], error) {
	if r == nil || r.Content != ContentStructured {
		return nil, newDecodeError(errNotStructured, r.traceID())
	}
	if r.Cursor == nil {
		return nil, newDecodeError(errors.New("response has no page cursor"), r.traceID())
	}
	items, err := decodeList[T](r.Payload, r.traceID())
	if err != nil {
		return nil, err
	}
	return &Page[T]{
		Items:   items,
		FirstID: r.Cursor.FirstID,
		LastID:  r.Cursor.LastID,
		HasMore: r.Cursor.HasMore,
	}, nil
}

func decodeList[T any](payload json.RawMessage, traceID string) ([]T, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, newDecodeError(fmt.Errorf("payload is not a list: %w", err), traceID)
	}
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		v, err := decodeElement[T](raw)
		if err != nil {
			err.Index = i
			err.TraceID = traceID
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeElement[T any](raw json.RawMessage) (T, *DecodeError) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &DecodeError{Index: -1, Snippet: snippet(raw), Err: err}
	}
	if err := validation.Struct(v); err != nil {
		return v, &DecodeError{Index: -1, Err: err}
	}
	return v, nil
}
