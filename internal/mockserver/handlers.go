package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	pathChatQuery          = "/api/proxy/api/v1/chat_query"
	pathChatCancel         = "/v3/chat/cancel"
	pathCreateConversation = "/api/proxy/api/v1/create_conversation"
	pathUpdateConversation = "/api/proxy/api/v1/update_conversation"

	// ErrorTrigger in a query makes the stream end with an inner error event.
	ErrorTrigger = "[error]"
)

// Platform error codes used by the fake.
const (
	CodeInvalidParam  = 4000
	CodeNotFound      = 4004
	CodeModelOverload = 7001
)

type conversation struct {
	ID       string
	UserID   string
	AppKey   string
	Inputs   map[string]any
	Created  time.Time
	LastChat time.Time
	Rounds   int
}

func (c *conversation) wire() gin.H {
	return gin.H{
		"AppConversationID": c.ID,
		"ConversationName":  fmt.Sprintf("conversation %s", c.ID),
		"CreateTime":        c.Created.Format(time.RFC3339),
		"LastChatTime":      c.LastChat.Format(time.RFC3339),
		"EmptyConversation": c.Rounds == 0,
	}
}

func apiError(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "msg": msg})
}

type chatQueryBody struct {
	AppConversationID string           `json:"AppConversationID"`
	UserID            string           `json:"UserID"`
	Query             string           `json:"query"`
	ResponseMode      string           `json:"ResponseMode"`
	QueryExtends      []map[string]any `json:"QueryExtends"`
}

func (s *Server) chatQuery(c *gin.Context) {
	var body chatQueryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, CodeInvalidParam, "invalid json body")
		return
	}
	if body.UserID == "" {
		apiError(c, http.StatusBadRequest, CodeInvalidParam, "UserID is required")
		return
	}
	switch body.ResponseMode {
	case "streaming", "blocking":
	default:
		apiError(c, http.StatusBadRequest, CodeInvalidParam, "ResponseMode must be streaming or blocking")
		return
	}

	convID := body.AppConversationID
	if convID != "" {
		s.mu.Lock()
		conv, ok := s.conversations[convID]
		if ok {
			conv.Rounds++
			conv.LastChat = time.Now()
		}
		s.mu.Unlock()
		if !ok {
			apiError(c, http.StatusOK, CodeNotFound, "conversation not found")
			return
		}
	} else {
		convID = s.nextID("conv")
	}

	chatID := s.nextID("chat")
	taskID := s.nextID("task")
	msgID := s.nextID("msg")
	chat := gin.H{"id": chatID, "task_id": taskID, "conversation_id": convID}

	w := newFrameWriter(c)
	w.send("message_start", chat)
	if strings.Contains(body.Query, ErrorTrigger) {
		w.send("error", gin.H{"code": CodeModelOverload, "msg": "model overloaded"})
		return
	}

	chunks := s.reply(body.Query)
	for _, chunk := range chunks {
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-c.Request.Context().Done():
				return
			}
		}
		if !w.send("message", gin.H{
			"id":              msgID,
			"conversation_id": convID,
			"task_id":         taskID,
			"chat_id":         chatID,
			"role":            "assistant",
			"type":            "answer",
			"content_type":    "text",
			"answer":          chunk,
		}) {
			return
		}
	}

	answer := strings.Join(chunks, "")
	w.send("message_cost", gin.H{
		"id":              chatID,
		"task_id":         taskID,
		"conversation_id": convID,
		"input_tokens":    len(strings.Fields(body.Query)),
		"output_tokens":   len(chunks),
	})
	w.send("message_end", gin.H{
		"id":              msgID,
		"conversation_id": convID,
		"task_id":         taskID,
		"chat_id":         chatID,
		"role":            "assistant",
		"type":            "answer",
		"content_type":    "text",
		"answer":          answer,
		"created_at":      time.Now().Unix(),
	})
}

type frameWriter struct {
	c       *gin.Context
	started bool
}

func newFrameWriter(c *gin.Context) *frameWriter {
	return &frameWriter{c: c}
}

// send writes one "event" / "data:data" frame and flushes it. It reports
// false once the client has gone away.
func (f *frameWriter) send(kind string, payload gin.H) bool {
	if !f.started {
		f.c.Header("Content-Type", "text/event-stream; charset=utf-8")
		f.c.Header("Cache-Control", "no-cache")
		f.c.Status(http.StatusOK)
		f.started = true
	}
	payload["event"] = kind
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(f.c.Writer, "event: %s\ndata:data: %s\n\n", kind, data); err != nil {
		return false
	}
	f.c.Writer.Flush()
	return f.c.Request.Context().Err() == nil
}

func (s *Server) chatCancel(c *gin.Context) {
	var body struct {
		ConversationID string `json:"conversation_id"`
		ChatID         string `json:"chat_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ConversationID == "" || body.ChatID == "" {
		apiError(c, http.StatusBadRequest, CodeInvalidParam, "conversation_id and chat_id are required")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"msg":  "",
		"data": gin.H{
			"id":              body.ChatID,
			"conversation_id": body.ConversationID,
			"task_id":         s.nextID("task"),
			"event":           "cancelled",
		},
	})
}

type conversationBody struct {
	AppConversationID string         `json:"AppConversationID"`
	Inputs            map[string]any `json:"Inputs"`
	UserID            string         `json:"UserID"`
	AppKey            string         `json:"AppKey"`
}

func (s *Server) createConversation(c *gin.Context) {
	var body conversationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, CodeInvalidParam, "invalid json body")
		return
	}
	if body.UserID == "" {
		apiError(c, http.StatusBadRequest, CodeInvalidParam, "UserID is required")
		return
	}
	now := time.Now()
	conv := &conversation{
		ID:       s.nextID("conv"),
		UserID:   body.UserID,
		AppKey:   body.AppKey,
		Inputs:   body.Inputs,
		Created:  now,
		LastChat: now,
	}
	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"Conversation": conv.wire()})
}

func (s *Server) updateConversation(c *gin.Context) {
	var body conversationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, CodeInvalidParam, "invalid json body")
		return
	}
	s.mu.Lock()
	conv, ok := s.conversations[body.AppConversationID]
	if ok {
		if body.Inputs != nil {
			conv.Inputs = body.Inputs
		}
		if body.AppKey != "" {
			conv.AppKey = body.AppKey
		}
	}
	var out gin.H
	if ok {
		out = conv.wire()
	}
	s.mu.Unlock()
	if !ok {
		apiError(c, http.StatusNotFound, CodeNotFound, "conversation not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"Conversation": out})
}
