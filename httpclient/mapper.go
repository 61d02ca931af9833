package httpclient

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Cursor is the paging position of a page result.
type Cursor struct {
	FirstID string `json:"first_id"`
	LastID  string `json:"last_id"`
	HasMore bool   `json:"has_more"`
}

// mapped is the outcome of a successful envelope inspection.
type mapped struct {
	payload   json.RawMessage
	cursor    *Cursor
	debugURL  string
	executeID string
}

// mapBody applies the platform envelope rules to a structured body, first
// match wins:
//
//  1. numeric "code" > 0 together with "msg"     -> *APIError
//  2. "error_code" naming a known auth failure   -> *AuthError
//  3. non-empty "error_message"                  -> *APIError without a code
//  4. dataField or "debug_url" present           -> page, debug or plain payload
//  5. dotted dataField resolvable as a path      -> nested payload
//  6. otherwise                                  -> the whole body
func mapBody(body []byte, dataField string, status int, traceID string) (*mapped, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{
			Index:      -1,
			StatusCode: status,
			Snippet:    snippet(body),
			TraceID:    traceID,
			Err:        errors.New("response body is not valid JSON"),
		}
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return &mapped{payload: json.RawMessage(doc.Raw)}, nil
	}

	if code, ok := numericCode(doc.Get("code")); ok && code > 0 && doc.Get("msg").Exists() {
		return nil, &APIError{Code: code, Message: doc.Get("msg").String(), StatusCode: status, TraceID: traceID}
	}

	if ec := doc.Get("error_code"); ec.Type == gjson.String && IsKnownAuthErrorType(ec.Str) {
		return nil, &AuthError{Type: AuthErrorType(ec.Str), StatusCode: status, TraceID: traceID}
	}

	if em := doc.Get("error_message"); em.Exists() && em.String() != "" {
		return nil, &APIError{Message: em.String(), StatusCode: status, TraceID: traceID}
	}

	key := literalKey(dataField)
	data := doc.Get(key)
	debugURL := doc.Get("debug_url")
	if data.Exists() || debugURL.Exists() {
		if doc.Get("first_id").Exists() {
			return &mapped{
				payload: rawOrNull(doc.Get("data")),
				cursor: &Cursor{
					FirstID: doc.Get("first_id").String(),
					LastID:  doc.Get("last_id").String(),
					HasMore: doc.Get("has_more").Bool(),
				},
			}, nil
		}
		if debugURL.Exists() {
			return &mapped{
				payload:   rawOrNull(data),
				debugURL:  debugURL.String(),
				executeID: doc.Get("execute_id").String(),
			}, nil
		}
		return &mapped{payload: rawOrNull(data)}, nil
	}

	if strings.Contains(dataField, ".") {
		if nested := doc.Get(nestedPath(dataField)); nested.Exists() {
			return &mapped{payload: rawOrNull(nested)}, nil
		}
	}

	return &mapped{payload: json.RawMessage(doc.Raw)}, nil
}

// numericCode accepts JSON numbers and numeric strings.
func numericCode(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		return int(r.Int()), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(r.Str))
		return n, err == nil
	}
	return 0, false
}

func rawOrNull(r gjson.Result) json.RawMessage {
	if !r.Exists() {
		return json.RawMessage("null")
	}
	return json.RawMessage(r.Raw)
}

// literalKey escapes a key so gjson treats it as one object key.
func literalKey(k string) string {
	var b strings.Builder
	for _, c := range k {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// nestedPath turns "a.b" into a gjson path over literal segments.
func nestedPath(field string) string {
	parts := strings.Split(field, ".")
	for i, p := range parts {
		parts[i] = literalKey(p)
	}
	return strings.Join(parts, ".")
}
