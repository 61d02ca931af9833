package chat

import (
	"encoding/json"
	"errors"
)

// ObjectType is the kind of one part of a multimodal message.
type ObjectType string

const (
	ObjectText  ObjectType = "text"
	ObjectFile  ObjectType = "file"
	ObjectImage ObjectType = "image"
	ObjectAudio ObjectType = "audio"
)

// Object is one part of an object_string message.
type Object struct {
	Type    ObjectType `json:"type"`
	Text    string     `json:"text,omitempty"`
	FileID  string     `json:"file_id,omitempty"`
	FileURL string     `json:"file_url,omitempty"`
}

// ErrNoFileReference is returned when a media object has neither a file id
// nor a url.
var ErrNoFileReference = errors.New("chat: file_id or file_url must be specified")

// TextObject is a text part.
func TextObject(text string) Object {
	return Object{Type: ObjectText, Text: text}
}

// ImageObject is an image part referenced by uploaded file id or url.
func ImageObject(fileID, fileURL string) (Object, error) {
	return mediaObject(ObjectImage, fileID, fileURL)
}

// FileObject is a file part referenced by uploaded file id or url.
func FileObject(fileID, fileURL string) (Object, error) {
	return mediaObject(ObjectFile, fileID, fileURL)
}

// AudioObject is an audio part referenced by uploaded file id or url.
func AudioObject(fileID, fileURL string) (Object, error) {
	return mediaObject(ObjectAudio, fileID, fileURL)
}

func mediaObject(t ObjectType, fileID, fileURL string) (Object, error) {
	if fileID == "" && fileURL == "" {
		return Object{}, ErrNoFileReference
	}
	return Object{Type: t, FileID: fileID, FileURL: fileURL}, nil
}

// UserText is a plain-text user question.
func UserText(content string, meta map[string]string) Message {
	return Message{
		Role:        RoleUser,
		Type:        TypeQuestion,
		Content:     content,
		ContentType: ContentText,
		MetaData:    meta,
	}
}

// UserObjects is a multimodal user question.
func UserObjects(objects []Object, meta map[string]string) (Message, error) {
	if len(objects) == 0 {
		return Message{}, errors.New("chat: at least one object is required")
	}
	b, err := json.Marshal(objects)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Role:        RoleUser,
		Type:        TypeQuestion,
		Content:     string(b),
		ContentType: ContentObjectString,
		MetaData:    meta,
	}, nil
}

// AssistantText is a plain-text assistant answer, for seeding context.
func AssistantText(content string, meta map[string]string) Message {
	return Message{
		Role:        RoleAssistant,
		Type:        TypeAnswer,
		Content:     content,
		ContentType: ContentText,
		MetaData:    meta,
	}
}
