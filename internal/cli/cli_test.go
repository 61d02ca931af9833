package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kbukum/agentplatform/config"
	"github.com/kbukum/agentplatform/internal/mockserver"
	"github.com/kbukum/agentplatform/logger"
)

type harness struct {
	srv     *mockserver.Server
	baseURL string
	userID  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := mockserver.New(mockserver.WithToken("tok"), mockserver.WithLogger(logger.Nop()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{srv: srv, baseURL: ts.URL, userID: "u1"}
}

func (h *harness) loader(string, string) (*config.ClientConfig, error) {
	cfg := &config.ClientConfig{
		BaseURL: h.baseURL,
		Token:   "tok",
		UserID:  h.userID,
		Logging: logger.Config{Level: "disabled"},
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// run executes the CLI and returns stdout, stderr and the error.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(
		WithConfigLoader(h.loader),
		WithIO(strings.NewReader(stdin), &out, &errOut),
	)
	err := app.Execute(context.Background(), args)
	return out.String(), errOut.String(), err
}

func TestAsk(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "", "ask", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello there\n", out)

	out, _, err = h.run(t, "", "ask", "--stream", "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello\n", out)
}

func TestAsk_StructuredOutput(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "", "ask", "-o", "json", "hi")
	require.NoError(t, err)
	var res askResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "echo: hi", res.Answer)
	assert.Equal(t, "hi", res.Query)
	assert.NotEmpty(t, res.ConversationID)

	out, _, err = h.run(t, "", "ask", "--stream", "-o", "yaml", "hi")
	require.NoError(t, err)
	res = askResult{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, "echo: hi", res.Answer)
	assert.NotEmpty(t, res.ChatID)
}

func TestAsk_Attachments(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "", "ask", "--image", "https://x/cat.png", "what is this")
	require.NoError(t, err)

	body := h.srv.Requests()[0].Body
	extends := body["QueryExtends"].([]any)
	require.Len(t, extends, 1)
	msg := extends[0].(map[string]any)
	assert.Equal(t, "object_string", msg["content_type"])
	assert.Contains(t, msg["content"], "https://x/cat.png")
}

func TestAsk_Failures(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "", "ask", "--conversation", "missing", "q")
	assert.Equal(t, ExitAPI, ExitCode(err))

	_, _, err = h.run(t, "", "ask", "--stream", "boom "+mockserver.ErrorTrigger)
	assert.Equal(t, ExitAPI, ExitCode(err))

	_, _, err = h.run(t, "", "ask", "-o", "xml", "q")
	assert.Equal(t, ExitUsage, ExitCode(err))

	h.srv.SetFault("/api/proxy/api/v1/chat_query", mockserver.Fault{Body: "not json"})
	_, _, err = h.run(t, "", "ask", "q")
	assert.Equal(t, ExitDecode, ExitCode(err))
}

func TestAsk_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(nil)
	h := &harness{baseURL: ts.URL, userID: "u1"}
	ts.Close()

	_, _, err := h.run(t, "", "ask", "q")
	assert.Equal(t, ExitNetwork, ExitCode(err))
}

func TestAsk_ConfigFailure(t *testing.T) {
	var out bytes.Buffer
	app := NewApp(
		WithConfigLoader(func(string, string) (*config.ClientConfig, error) {
			return nil, errors.New("no config")
		}),
		WithIO(strings.NewReader(""), &out, &out),
	)
	err := app.Execute(context.Background(), []string{"ask", "q"})
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestChat_Interactive(t *testing.T) {
	h := newHarness(t)
	state := filepath.Join(t.TempDir(), "state.json")

	out, _, err := h.run(t, "hi\n\nsecond\nexit\nignored\n", "chat", "--state", state)
	require.NoError(t, err)
	assert.Contains(t, out, "echo: hi\n")
	assert.Contains(t, out, "echo: second\n")
	assert.Contains(t, out, "2 rounds in conversation")
	assert.NotContains(t, out, "ignored")

	saved, err := loadState(state)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "u1", saved.UserID)
	_, err = time.Parse(stateDateLayout, saved.Timestamp)
	require.NoError(t, err)

	// a file with only a date, as other tools write it, resumes too
	legacy := `{"conversation_id":"` + saved.ConversationID + `","user_id":"u1","timestamp":"2025-08-03"}`
	require.NoError(t, os.WriteFile(state, []byte(legacy), 0o600))

	out, _, err = h.run(t, "again\n", "chat", "--state", state, "-o", "json")
	require.NoError(t, err)
	var sess session
	require.NoError(t, json.Unmarshal([]byte(out), &sess))
	assert.Equal(t, saved.ConversationID, sess.ConversationID)
	require.Len(t, sess.Rounds, 1)
	assert.Equal(t, "echo: again", sess.Rounds[0].Answer)

	var creates int
	for _, r := range h.srv.Requests() {
		if strings.HasSuffix(r.Path, "create_conversation") {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
}

func TestChat_NewAndErrors(t *testing.T) {
	h := newHarness(t)
	state := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, saveState(state, State{ConversationID: "old", UserID: "u1"}))

	out, errOut, err := h.run(t, "x "+mockserver.ErrorTrigger+"\nok\n", "chat", "--state", state, "--new")
	require.NoError(t, err)
	assert.Contains(t, errOut, "error:")
	assert.Contains(t, out, "echo: ok")

	saved, err := loadState(state)
	require.NoError(t, err)
	assert.NotEqual(t, "old", saved.ConversationID)
}

func TestChat_RequiresUser(t *testing.T) {
	h := newHarness(t)
	h.userID = ""
	_, _, err := h.run(t, "", "chat", "--state", filepath.Join(t.TempDir(), "s.json"))
	assert.Equal(t, ExitUsage, ExitCode(err))

	_, _, err = h.run(t, "", "--user", "u2", "chat", "--state", filepath.Join(t.TempDir(), "s.json"))
	assert.NoError(t, err)
}

func TestConversationCommands(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run(t, "", "conversation", "create", "--input", "lang=en", "-o", "json")
	require.NoError(t, err)
	var conv struct {
		AppConversationID string
	}
	require.NoError(t, json.Unmarshal([]byte(out), &conv))
	require.NotEmpty(t, conv.AppConversationID)
	assert.Equal(t, map[string]any{"lang": "en"}, h.srv.Requests()[0].Body["Inputs"])

	out, _, err = h.run(t, "", "conv", "update", conv.AppConversationID, "--input", "lang=fr")
	require.NoError(t, err)
	assert.Equal(t, conv.AppConversationID+"\n", out)

	_, _, err = h.run(t, "", "conversation", "update", "missing")
	assert.Equal(t, ExitAPI, ExitCode(err))
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run(t, "", "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Empty(t, h.srv.Requests(), "version needs no platform")
}

func TestStateFile(t *testing.T) {
	dir := t.TempDir()
	st, err := loadState(filepath.Join(dir, "none.json"))
	require.NoError(t, err)
	assert.Nil(t, st)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = loadState(bad)
	assert.Error(t, err)

	dated := filepath.Join(dir, "dated.json")
	require.NoError(t, os.WriteFile(dated, []byte(`{"conversation_id":"c1","user_id":"u1","timestamp":"2025-08-03"}`), 0o600))
	st, err = loadState(dated)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "c1", st.ConversationID)
	assert.Equal(t, "2025-08-03", st.Timestamp)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitUsage, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitNetwork, ExitCode(exitWithCode(ExitNetwork, errors.New("x"))))
}
