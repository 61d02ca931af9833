// Package conversation manages the server-side conversations that chats
// run in.
package conversation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kbukum/agentplatform/httpclient"
	"github.com/kbukum/agentplatform/logger"
	"github.com/kbukum/agentplatform/validation"
)

const (
	pathCreate = "/api/proxy/api/v1/create_conversation"
	pathUpdate = "/api/proxy/api/v1/update_conversation"

	// dataField is the envelope key of conversation responses.
	dataField = "Conversation"
)

// Conversation is a server-side chat context.
type Conversation struct {
	AppConversationID string `json:"AppConversationID" validate:"required"`
	ConversationName  string `json:"ConversationName,omitempty"`
	CreateTime        string `json:"CreateTime,omitempty"`
	LastChatTime      string `json:"LastChatTime,omitempty"`
	EmptyConversation bool   `json:"EmptyConversation,omitempty"`
}

// CreateRequest opens a conversation.
type CreateRequest struct {
	UserID string
	// Inputs are the app variables bound to the conversation.
	Inputs map[string]any
	// AppKey overrides the client default.
	AppKey string
}

// UpdateRequest replaces the inputs of a conversation.
type UpdateRequest struct {
	ConversationID string
	UserID         string
	Inputs         map[string]any
	AppKey         string
}

type body struct {
	AppConversationID string         `json:"AppConversationID,omitempty"`
	Inputs            map[string]any `json:"Inputs"`
	UserID            string         `json:"UserID"`
	AppKey            string         `json:"AppKey,omitempty"`
}

// Client creates and updates conversations.
type Client struct {
	adapter *httpclient.Adapter
	appKey  string
	log     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAppKey sets the app key sent when a request has none.
func WithAppKey(key string) Option {
	return func(c *Client) { c.appKey = key }
}

// New creates a Client over a.
func New(a *httpclient.Adapter, opts ...Option) *Client {
	c := &Client{adapter: a, log: logger.WithComponent("conversation")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create opens a new conversation.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Conversation, error) {
	if err := validation.New().Required("user_id", req.UserID).Err(); err != nil {
		return nil, fmt.Errorf("%w: conversation: %v", httpclient.ErrInvalidRequest, err)
	}
	conv, err := c.call(ctx, pathCreate, body{
		Inputs: req.Inputs,
		UserID: req.UserID,
		AppKey: c.key(req.AppKey),
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug("conversation created", logger.Fields(logger.FieldConvID, conv.AppConversationID))
	return conv, nil
}

// Update replaces the inputs of an existing conversation.
func (c *Client) Update(ctx context.Context, req UpdateRequest) (*Conversation, error) {
	err := validation.New().
		Required("conversation_id", req.ConversationID).
		Required("user_id", req.UserID).
		Err()
	if err != nil {
		return nil, fmt.Errorf("%w: conversation: %v", httpclient.ErrInvalidRequest, err)
	}
	return c.call(ctx, pathUpdate, body{
		AppConversationID: req.ConversationID,
		Inputs:            req.Inputs,
		UserID:            req.UserID,
		AppKey:            c.key(req.AppKey),
	})
}

func (c *Client) call(ctx context.Context, path string, b body) (*Conversation, error) {
	req := httpclient.NewRequest(http.MethodPost, path,
		httpclient.WithBody(b),
		httpclient.WithResult(httpclient.ResultSingle),
		httpclient.WithDataField(dataField))
	conv, err := httpclient.Call[Conversation](ctx, c.adapter, req)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) key(k string) string {
	if k != "" {
		return k
	}
	return c.appKey
}
