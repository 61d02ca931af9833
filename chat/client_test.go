package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/internal/mockserver"
	"github.com/kbukum/agentplatform/logger"
)

func newClient(t *testing.T, opts ...mockserver.Option) (*Client, *mockserver.Server) {
	t.Helper()
	srv := mockserver.New(append([]mockserver.Option{
		mockserver.WithToken("tok"),
		mockserver.WithLogger(logger.Nop()),
	}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	a, err := httpclient.New(httpclient.Config{
		BaseURL:    ts.URL,
		Credential: httpclient.BearerAuth("tok"),
	}, httpclient.WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return New(a), srv
}

func TestCreate_ReturnsFinalMessage(t *testing.T) {
	c, srv := newClient(t)
	msg, err := c.Create(context.Background(), CreateRequest{UserID: "u1", Query: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello world", msg.Answer)
	assert.Equal(t, RoleAssistant, msg.Role)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "blocking", reqs[0].Body["ResponseMode"])
	assert.Equal(t, "u1", reqs[0].Body["UserID"])
	assert.Equal(t, "hello world", reqs[0].Body["query"])
	assert.NotContains(t, reqs[0].Body, "QueryExtends")
}

func TestCreate_StructuredAnswer(t *testing.T) {
	c, srv := newClient(t)
	srv.SetFault(pathChatQuery, mockserver.Fault{
		Body: `{"code":0,"msg":"","data":{"role":"assistant","answer":"direct"}}`,
	})
	msg, err := c.Create(context.Background(), CreateRequest{UserID: "u1", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "direct", msg.Answer)
}

func TestCreate_NoFinalMessage(t *testing.T) {
	c, srv := newClient(t)
	srv.SetFault(pathChatQuery, mockserver.Fault{
		ContentType: "text/event-stream",
		Body:        "event: message\ndata:data: {\"event\":\"message\",\"answer\":\"partial\"}\n\n",
	})
	_, err := c.Create(context.Background(), CreateRequest{UserID: "u1", Query: "q"})
	require.Error(t, err)
	assert.True(t, httpclient.IsDecode(err))
	assert.True(t, errors.Is(err, ErrNoAnswer))
}

func TestStream_EventsInWireOrder(t *testing.T) {
	c, srv := newClient(t)
	s, err := c.Stream(context.Background(), CreateRequest{
		UserID:       "u1",
		Query:        "one two",
		QueryExtends: []Message{UserText("context", nil)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, s.TraceID())

	var kinds []EventKind
	var answer string
	for ev, err := range s.All() {
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventMessage {
			answer += ev.Message.Answer
		}
	}
	assert.Equal(t, []EventKind{
		EventChatStart, EventMessage, EventMessage, EventMessage, EventMessageCost, EventDone,
	}, kinds)
	assert.Equal(t, "echo: one two", answer)

	body := srv.Requests()[0].Body
	assert.Equal(t, "streaming", body["ResponseMode"])
	extends, ok := body["QueryExtends"].([]any)
	require.True(t, ok)
	assert.Len(t, extends, 1)
}

func TestStream_UnknownEventThenValidFrames(t *testing.T) {
	c, srv := newClient(t)
	srv.SetFault(pathChatQuery, mockserver.Fault{
		ContentType: "text/event-stream",
		Body: "event: message\ndata:data: {\"event\":\"agent_thinking\",\"steps\":[1,2]}\n\n" +
			"event: message\ndata:data: {\"event\":\"message\",\"answer\":\"hi\"}\n\n" +
			"event: message\ndata:data: {\"event\":\"message_end\",\"answer\":\"hi\"}\n\n",
	})
	s, err := c.Stream(context.Background(), CreateRequest{UserID: "u1", Query: "q"})
	require.NoError(t, err)

	var kinds []EventKind
	for ev, err := range s.All() {
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		assert.Same(t, s.Response(), ev.Response)
		assert.Equal(t, s.TraceID(), ev.Response.Header.Get(mockserver.TraceHeader))
	}
	assert.Equal(t, []EventKind{"agent_thinking", EventMessage, EventDone}, kinds)
}

func TestStream_ErrorEventHalts(t *testing.T) {
	c, _ := newClient(t)
	s, err := c.Stream(context.Background(), CreateRequest{UserID: "u1", Query: "x " + mockserver.ErrorTrigger})
	require.NoError(t, err)

	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, EventChatStart, first.Kind)

	_, err = s.Next()
	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, mockserver.CodeModelOverload, apiErr.Code)
	assert.Equal(t, s.TraceID(), apiErr.TraceID)

	_, again := s.Next()
	assert.Same(t, err, again)
}

func TestCollect(t *testing.T) {
	c, _ := newClient(t)
	s, err := c.Stream(context.Background(), CreateRequest{UserID: "u1", Query: "abc"})
	require.NoError(t, err)
	text, final, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "echo: abc", text)
	require.NotNil(t, final)
	assert.Equal(t, text, final.Answer)
}

func TestStreamAsync(t *testing.T) {
	c, _ := newClient(t, mockserver.WithFrameDelay(time.Millisecond))
	ctx := context.Background()

	pendings := make([]*httpclient.Pending, 3)
	for i := range pendings {
		p, err := c.StreamAsync(ctx, CreateRequest{UserID: "u1", Query: "parallel"})
		require.NoError(t, err)
		pendings[i] = p
	}
	for _, p := range pendings {
		s, err := AwaitStream(ctx, p)
		require.NoError(t, err)
		var n int
		for item := range s.Events(ctx) {
			require.NoError(t, item.Err)
			n++
		}
		assert.Equal(t, 5, n)
	}
}

func TestStream_APIErrorBeforeStream(t *testing.T) {
	c, _ := newClient(t)
	_, err := c.Stream(context.Background(), CreateRequest{UserID: "u1", Query: "q", ConversationID: "missing"})
	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, mockserver.CodeNotFound, apiErr.Code)
	assert.NotEmpty(t, apiErr.TraceID)
}

func TestStream_AuthFailure(t *testing.T) {
	srv := mockserver.New(mockserver.WithToken("right"), mockserver.WithLogger(logger.Nop()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	a, err := httpclient.New(httpclient.Config{BaseURL: ts.URL, Credential: httpclient.BearerAuth("wrong")},
		httpclient.WithLogger(logger.Nop()))
	require.NoError(t, err)
	defer a.Close(context.Background())

	_, err = New(a).Stream(context.Background(), CreateRequest{UserID: "u1", Query: "q"})
	var authErr *httpclient.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, httpclient.AuthErrorType("invalid_token"), authErr.Type)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestInvalidRequests(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()

	_, err := c.Create(ctx, CreateRequest{Query: "q"})
	assert.ErrorIs(t, err, httpclient.ErrInvalidRequest)

	_, err = c.Stream(ctx, CreateRequest{UserID: "u"})
	assert.ErrorIs(t, err, httpclient.ErrInvalidRequest)

	_, err = c.StreamAsync(ctx, CreateRequest{UserID: "u", Query: "q", QueryExtends: make([]Message, maxQueryExtends+1)})
	assert.ErrorIs(t, err, httpclient.ErrInvalidRequest)

	assert.Empty(t, srv.Requests())
}

func TestCancel(t *testing.T) {
	c, srv := newClient(t)
	ch, err := c.Cancel(context.Background(), "conv-1", "chat-9")
	require.NoError(t, err)
	assert.Equal(t, "chat-9", ch.ID)
	assert.Equal(t, "conv-1", ch.ConversationID)
	assert.Equal(t, "cancelled", ch.Event)
	assert.Equal(t, "chat-9", srv.Requests()[0].Body["chat_id"])

	_, err = c.Cancel(context.Background(), "", "chat-9")
	assert.True(t, httpclient.IsAPIError(err))
}
