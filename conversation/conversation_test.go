package conversation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"

	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/logger"
)

const baseURL = "https://platform.test"

// newReplayClient serves requests from testdata/fixtures/<name>.yaml.
// Set VCR_MODE=record with AGENTPLATFORM_BASE_URL pointing at a live
// platform to refresh a cassette.
func newReplayClient(t *testing.T, name string, opts ...Option) *Client {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}
	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", name), mode, nil)
	require.NoError(t, err)
	r.SetMatcher(matchBody)
	t.Cleanup(func() {
		if err := r.Stop(); err != nil {
			t.Errorf("stop recorder: %v", err)
		}
	})

	a, err := httpclient.New(httpclient.Config{
		BaseURL:    baseURL,
		Credential: httpclient.BearerAuth("tok"),
	}, httpclient.WithTransport(r), httpclient.WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return New(a, opts...)
}

// matchBody matches method, URL and the JSON value of the body.
func matchBody(r *http.Request, i cassette.Request) bool {
	if r.Method != i.Method || r.URL.String() != i.URL {
		return false
	}
	var got, want any
	if r.GetBody != nil {
		rc, err := r.GetBody()
		if err != nil {
			return false
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		if json.Unmarshal(b, &got) != nil {
			return false
		}
	}
	if json.Unmarshal([]byte(i.Body), &want) != nil {
		return false
	}
	return reflect.DeepEqual(got, want)
}

func TestLifecycle(t *testing.T) {
	c := newReplayClient(t, "conversation_lifecycle", WithAppKey("app-1"))
	ctx := context.Background()

	conv, err := c.Create(ctx, CreateRequest{UserID: "u1", Inputs: map[string]any{"lang": "en"}})
	require.NoError(t, err)
	assert.Equal(t, "conv-42", conv.AppConversationID)
	assert.Equal(t, "support", conv.ConversationName)
	assert.True(t, conv.EmptyConversation)

	conv, err = c.Update(ctx, UpdateRequest{
		ConversationID: conv.AppConversationID,
		UserID:         "u1",
		Inputs:         map[string]any{"lang": "fr"},
	})
	require.NoError(t, err)
	assert.False(t, conv.EmptyConversation)
	assert.Equal(t, "2024-03-09T09:00:00Z", conv.LastChatTime)
}

func TestErrors(t *testing.T) {
	c := newReplayClient(t, "conversation_errors")
	ctx := context.Background()

	_, err := c.Update(ctx, UpdateRequest{ConversationID: "gone", UserID: "u1"})
	var apiErr *httpclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 4004, apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "20240309100000-missing", apiErr.TraceID)

	_, err = c.Create(ctx, CreateRequest{UserID: "u1"})
	var authErr *httpclient.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, httpclient.AuthErrorType("expired_token"), authErr.Type)
	assert.Equal(t, "20240309100001-expired", authErr.TraceID)

	_, err = c.Create(ctx, CreateRequest{UserID: "u1", Inputs: map[string]any{"x": 1}})
	assert.True(t, httpclient.IsDecode(err), "missing id fails validation: %v", err)
}

func TestValidation(t *testing.T) {
	c := newReplayClient(t, "conversation_errors")
	ctx := context.Background()

	_, err := c.Create(ctx, CreateRequest{})
	assert.ErrorIs(t, err, httpclient.ErrInvalidRequest)

	_, err = c.Update(ctx, UpdateRequest{UserID: "u1"})
	assert.ErrorIs(t, err, httpclient.ErrInvalidRequest)
}
