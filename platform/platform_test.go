package platform

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/agentplatform/chat"
	"github.com/kbukum/agentplatform/config"
	"github.com/kbukum/agentplatform/conversation"
	"github.com/kbukum/agentplatform/internal/mockserver"
	"github.com/kbukum/agentplatform/logger"
)

func newPlatform(t *testing.T, cfg *config.ClientConfig, srvOpts ...mockserver.Option) (*Client, *mockserver.Server) {
	t.Helper()
	srv := mockserver.New(append([]mockserver.Option{mockserver.WithLogger(logger.Nop())}, srvOpts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg.BaseURL = ts.URL
	c, err := New(context.Background(), cfg, WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, srv
}

func TestMultiRoundChat(t *testing.T) {
	c, srv := newPlatform(t, &config.ClientConfig{Token: "tok", UserID: "u1", AppKey: "app-1"},
		mockserver.WithToken("tok"))
	ctx := context.Background()

	conv, err := c.Conversations().Create(ctx, conversation.CreateRequest{UserID: c.UserID()})
	require.NoError(t, err)

	for _, q := range []string{"first", "second"} {
		msg, err := c.Chat().Create(ctx, chat.CreateRequest{
			UserID:         c.UserID(),
			ConversationID: conv.AppConversationID,
			Query:          q,
		})
		require.NoError(t, err)
		assert.Equal(t, "echo: "+q, msg.Answer)
		assert.Equal(t, conv.AppConversationID, msg.ConversationID)
	}

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "app-1", reqs[0].Body["AppKey"])
}

func TestSignedCredential(t *testing.T) {
	c, _ := newPlatform(t, &config.ClientConfig{AccessKey: "AK", SecretKey: "SK", UserID: "u1"},
		mockserver.WithAccessKey("AK"))
	s, err := c.Chat().Stream(context.Background(), chat.CreateRequest{UserID: "u1", Query: "signed"})
	require.NoError(t, err)
	text, _, err := chat.Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "echo: signed", text)
}

func TestClientsAreShared(t *testing.T) {
	c, _ := newPlatform(t, &config.ClientConfig{Token: "tok"})
	assert.Same(t, c.Chat(), c.Chat())
	assert.Same(t, c.Conversations(), c.Conversations())
	assert.Equal(t, c.Config().BaseURL, c.Adapter().Config().BaseURL)
}

func TestClose_Idempotent(t *testing.T) {
	c, _ := newPlatform(t, &config.ClientConfig{Token: "tok"})
	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &config.ClientConfig{BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = New(context.Background(), &config.ClientConfig{BaseURL: "https://x", Token: "t", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)
}
