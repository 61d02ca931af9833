package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaObjects(t *testing.T) {
	for name, build := range map[string]func(string, string) (Object, error){
		"image": ImageObject,
		"file":  FileObject,
		"audio": AudioObject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := build("", "")
			assert.ErrorIs(t, err, ErrNoFileReference)

			o, err := build("f1", "")
			require.NoError(t, err)
			assert.Equal(t, ObjectType(name), o.Type)
			assert.Equal(t, "f1", o.FileID)

			o, err = build("", "https://x/y.png")
			require.NoError(t, err)
			assert.Equal(t, "https://x/y.png", o.FileURL)
		})
	}
}

func TestUserObjects(t *testing.T) {
	img, err := ImageObject("", "https://x/cat.png")
	require.NoError(t, err)
	m, err := UserObjects([]Object{TextObject("what is this?"), img}, map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, TypeQuestion, m.Type)
	assert.Equal(t, ContentObjectString, m.ContentType)
	assert.JSONEq(t, `[{"type":"text","text":"what is this?"},{"type":"image","file_url":"https://x/cat.png"}]`, m.Content)

	_, err = UserObjects(nil, nil)
	assert.Error(t, err)
}

func TestTextMessages(t *testing.T) {
	u := UserText("hi", nil)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, ContentText, u.ContentType)

	a := AssistantText("hello", nil)
	assert.Equal(t, RoleAssistant, a.Role)
	assert.Equal(t, TypeAnswer, a.Type)

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","type":"question","content":"hi","content_type":"text"}`, string(b))
}
