package chat

import "github.com/kbukum/agentplatform/httpclient"

// EventKind is the inner "event" discriminator of a stream frame payload.
type EventKind string

const (
	EventChatStart            EventKind = "message_start"
	EventOutputStart          EventKind = "message_output_start"
	EventOutputEnd            EventKind = "message_output_end"
	EventMessageCost          EventKind = "message_cost"
	EventMessage              EventKind = "message"
	EventDone                 EventKind = "message_end"
	EventKnowledgeRetrieve    EventKind = "knowledge_retrieve"
	EventKnowledgeRetrieveEnd EventKind = "knowledge_retrieve_end"
	EventError                EventKind = "error"
)

// payloadKind says which record an event carries.
type payloadKind int

const (
	payloadNone payloadKind = iota
	payloadMessage
	payloadChat
	payloadKnowledge
)

var eventPayloads = map[EventKind]payloadKind{
	EventMessage:              payloadMessage,
	EventDone:                 payloadMessage,
	EventChatStart:            payloadChat,
	EventOutputStart:          payloadChat,
	EventMessageCost:          payloadChat,
	EventOutputEnd:            payloadChat,
	EventKnowledgeRetrieve:    payloadKnowledge,
	EventKnowledgeRetrieveEnd: payloadKnowledge,
}

// Known reports whether k is a discriminator this package decodes. Unknown
// kinds are still delivered, without a payload.
func (k EventKind) Known() bool {
	_, ok := eventPayloads[k]
	return ok || k == EventError
}

// Event is one decoded stream frame. Exactly one of Message, Chat and
// Knowledge is set for known kinds; none is set for unrecognized ones.
type Event struct {
	Kind EventKind `json:"event"`
	// Label is the outer frame "event" field.
	Label string `json:"label,omitempty"`

	Message   *Message   `json:"message,omitempty"`
	Chat      *Chat      `json:"chat,omitempty"`
	Knowledge *Knowledge `json:"knowledge,omitempty"`

	// Response is the stream response this event was read from. It is shared
	// by every event of the stream and is not owned by the event.
	Response *httpclient.RawResponse `json:"-" yaml:"-"`
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageType classifies a message within a chat.
type MessageType string

const (
	TypeQuestion     MessageType = "question"
	TypeAnswer       MessageType = "answer"
	TypeFunctionCall MessageType = "function_call"
	TypeToolOutput   MessageType = "tool_output"
	TypeToolResponse MessageType = "tool_response"
	TypeFollowUp     MessageType = "follow_up"
	TypeVerbose      MessageType = "verbose"
)

// ContentType is the encoding of Message.Content.
type ContentType string

const (
	ContentText         ContentType = "text"
	ContentObjectString ContentType = "object_string"
	ContentCard         ContentType = "card"
	ContentAudio        ContentType = "audio"
)

// Message is a chat message, either sent as query context or streamed back
// as an answer.
type Message struct {
	Role        Role              `json:"role,omitempty"`
	Type        MessageType       `json:"type,omitempty"`
	Content     string            `json:"content,omitempty"`
	ContentType ContentType       `json:"content_type,omitempty"`
	MetaData    map[string]string `json:"meta_data,omitempty"`

	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	SectionID      string `json:"section_id,omitempty"`
	ChatID         string `json:"chat_id,omitempty"`
	CreatedAt      int64  `json:"created_at,omitempty"`
	UpdatedAt      int64  `json:"updated_at,omitempty"`
	TaskID         string `json:"task_id,omitempty"`
	Answer         string `json:"answer,omitempty"`
	Event          string `json:"event,omitempty"`
}

// Chat is the status record of one chat round.
type Chat struct {
	ID                 string   `json:"id" validate:"required"`
	TaskID             string   `json:"task_id" validate:"required"`
	ConversationID     string   `json:"conversation_id" validate:"required"`
	InputTokens        *int     `json:"input_tokens,omitempty"`
	OutputTokens       *int     `json:"output_tokens,omitempty"`
	StartTimeFirstResp *int64   `json:"start_time_first_resp,omitempty"`
	LatencyFirstResp   *int64   `json:"latency_first_resp,omitempty"`
	Latency            *float64 `json:"latency,omitempty"`
	CreatedAt          *float64 `json:"created_at,omitempty"`
	Event              string   `json:"event,omitempty"`
}

// Knowledge reports a knowledge-base retrieval during a chat.
type Knowledge struct {
	ID             string         `json:"id" validate:"required"`
	TaskID         string         `json:"task_id" validate:"required"`
	ConversationID string         `json:"conversation_id" validate:"required"`
	MessageID      string         `json:"message_id,omitempty"`
	Docs           map[string]any `json:"docs,omitempty"`
	Latency        *float64       `json:"latency,omitempty"`
	CreatedAt      *float64       `json:"created_at,omitempty"`
	Event          string         `json:"event,omitempty"`
}
