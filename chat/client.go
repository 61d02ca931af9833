package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/logger"
	"github.com/kbukum/agentplatform/validation"
)

const (
	pathChatQuery  = "/api/proxy/api/v1/chat_query"
	pathChatCancel = "/v3/chat/cancel"

	modeStreaming = "streaming"
	modeBlocking  = "blocking"

	maxQueryExtends = 100
)

// EventStream is a stream of decoded chat events.
type EventStream = httpclient.Stream[*Event]

// ErrNoAnswer is returned by Create when the stream ends without a
// message_end event.
var ErrNoAnswer = errors.New("chat: stream ended without a final message")

// CreateRequest is one user query.
type CreateRequest struct {
	UserID         string
	ConversationID string
	Query          string
	// QueryExtends carries extra context messages, e.g. multimodal objects.
	QueryExtends []Message
	Headers      map[string]string
}

type queryBody struct {
	AppConversationID string    `json:"AppConversationID"`
	UserID            string    `json:"UserID"`
	Query             string    `json:"query"`
	ResponseMode      string    `json:"ResponseMode"`
	QueryExtends      []Message `json:"QueryExtends,omitempty"`
}

// Client runs chats against an agent app.
type Client struct {
	adapter *httpclient.Adapter
	log     *logger.Logger
}

// New creates a Client over a.
func New(a *httpclient.Adapter) *Client {
	return &Client{adapter: a, log: logger.WithComponent("chat")}
}

func (c *Client) query(req CreateRequest, mode string) (*httpclient.Request, error) {
	err := validation.New().
		Required("user_id", req.UserID).
		Check(req.Query != "" || len(req.QueryExtends) > 0, "query", "is required").
		Check(len(req.QueryExtends) <= maxQueryExtends, "query_extends", fmt.Sprintf("allows at most %d messages", maxQueryExtends)).
		Err()
	if err != nil {
		return nil, fmt.Errorf("%w: chat: %v", httpclient.ErrInvalidRequest, err)
	}
	opts := []httpclient.RequestOption{
		httpclient.WithBody(queryBody{
			AppConversationID: req.ConversationID,
			UserID:            req.UserID,
			Query:             req.Query,
			ResponseMode:      mode,
			QueryExtends:      req.QueryExtends,
		}),
		httpclient.WithStream(),
	}
	for k, v := range req.Headers {
		opts = append(opts, httpclient.WithHeader(k, v))
	}
	return httpclient.NewRequest(http.MethodPost, pathChatQuery, opts...), nil
}

// Create runs a blocking chat and returns the final answer message. The
// platform may answer with an event stream or a single record; both are
// accepted.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Message, error) {
	hr, err := c.query(req, modeBlocking)
	if err != nil {
		return nil, err
	}
	res, err := c.adapter.Send(ctx, hr)
	if err != nil {
		return nil, err
	}
	if res.Stream == nil {
		defer func() { _ = res.Close() }()
		m, err := httpclient.DecodeSingle[Message](res)
		if err != nil {
			return nil, err
		}
		return &m, nil
	}

	s := httpclient.NewStream(res.Stream, DecodeEvent)
	defer func() { _ = s.Close() }()
	for ev, err := range s.All() {
		if err != nil {
			return nil, err
		}
		if ev.Kind == EventDone && ev.Message != nil {
			return ev.Message, nil
		}
	}
	c.log.Warn("chat stream ended without answer", logger.Fields(logger.FieldTraceID, s.TraceID()))
	return nil, &httpclient.DecodeError{Index: -1, TraceID: s.TraceID(), Err: ErrNoAnswer}
}

// Stream starts a streaming chat. The caller must drain or Close the
// returned stream.
func (c *Client) Stream(ctx context.Context, req CreateRequest) (*EventStream, error) {
	hr, err := c.query(req, modeStreaming)
	if err != nil {
		return nil, err
	}
	return httpclient.OpenStream(ctx, c.adapter, hr, DecodeEvent)
}

// StreamAsync starts a streaming chat without waiting for the response.
// Pass the result to AwaitStream.
func (c *Client) StreamAsync(ctx context.Context, req CreateRequest) (*httpclient.Pending, error) {
	hr, err := c.query(req, modeStreaming)
	if err != nil {
		return nil, err
	}
	return c.adapter.SendAsync(ctx, hr), nil
}

// AwaitStream waits for a chat started with StreamAsync.
func AwaitStream(ctx context.Context, p *httpclient.Pending) (*EventStream, error) {
	return httpclient.AwaitStream(ctx, p, DecodeEvent)
}

// Cancel stops an in-progress chat.
func (c *Client) Cancel(ctx context.Context, conversationID, chatID string) (*Chat, error) {
	hr := httpclient.NewRequest(http.MethodPost, pathChatCancel,
		httpclient.WithBody(map[string]string{
			"conversation_id": conversationID,
			"chat_id":         chatID,
		}),
		httpclient.WithResult(httpclient.ResultSingle))
	ch, err := httpclient.Call[Chat](ctx, c.adapter, hr)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// Collect drains s and concatenates the streamed answer text. It returns the
// final message when one arrived.
func Collect(s *EventStream) (string, *Message, error) {
	var (
		text  []byte
		final *Message
	)
	for ev, err := range s.All() {
		if err != nil {
			return string(text), nil, err
		}
		if ev.Message == nil {
			continue
		}
		switch ev.Kind {
		case EventMessage:
			text = append(text, messageText(ev.Message)...)
		case EventDone:
			final = ev.Message
		}
	}
	return string(text), final, nil
}

// messageText prefers Answer, which carries the delta of streamed messages.
func messageText(m *Message) string {
	if m.Answer != "" {
		return m.Answer
	}
	return m.Content
}
