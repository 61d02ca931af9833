package mockserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/agentplatform/logger"
)

const (
	ctxRequestID = "request_id"
	ctxBody      = "raw_body"
)

// recovery turns a handler panic into a code/msg envelope.
func recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprint(r),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
				))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code": 5000, "msg": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// requestID echoes or assigns X-Request-Id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// traceID stamps every response with a fresh trace id.
func traceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(TraceHeader, strings.ReplaceAll(uuid.NewString(), "-", ""))
		c.Next()
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logger.MergeWithDuration(logger.Fields(
			logger.FieldMethod, c.Request.Method,
			"path", c.Request.URL.Path,
			logger.FieldStatus, status,
			logger.FieldRequestID, c.GetString(ctxRequestID),
			logger.FieldTraceID, c.Writer.Header().Get(TraceHeader),
		), time.Since(start))
		switch {
		case status >= 500:
			log.Error("request completed", fields)
		case status >= 400:
			log.Warn("request completed", fields)
		default:
			log.Debug("request completed", fields)
		}
	}
}

// record buffers the body for later handlers and keeps a copy for tests.
func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw []byte
		if c.Request.Body != nil {
			raw, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		}
		c.Set(ctxBody, raw)

		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			RequestID: c.GetString(ctxRequestID),
			Body:      body,
		})
		s.mu.Unlock()
		c.Next()
	}
}

// auth checks the bearer token or the signed-request envelope. Failures use
// the error_code envelope with a 401.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" && s.accessKey == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		switch {
		case s.token != "" && header == "Bearer "+s.token:
			c.Next()
		case s.accessKey != "" && s.validSignature(c, header):
			c.Next()
		case header == "":
			abortAuth(c, "access_denied", "authorization header required")
		default:
			abortAuth(c, "invalid_token", "credential rejected")
		}
	}
}

// validSignature checks the credential scope and the body hash. The HMAC
// itself is not recomputed.
func (s *Server) validSignature(c *gin.Context, header string) bool {
	if !strings.HasPrefix(header, "HMAC-SHA256 Credential="+s.accessKey+"/") {
		return false
	}
	if c.GetHeader("X-Date") == "" {
		return false
	}
	raw, _ := c.Get(ctxBody)
	b, _ := raw.([]byte)
	sum := sha256.Sum256(b)
	return c.GetHeader("X-Content-Sha256") == hex.EncodeToString(sum[:])
}

func abortAuth(c *gin.Context, code, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error_code":    code,
		"error_message": msg,
	})
}

// fault serves an injected response instead of the route.
func (s *Server) fault() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		f, ok := s.faults[c.Request.URL.Path]
		s.mu.Unlock()
		if !ok {
			c.Next()
			return
		}
		ct := f.ContentType
		if ct == "" {
			ct = "application/json"
		}
		status := f.Status
		if status == 0 {
			status = http.StatusOK
		}
		c.Data(status, ct, []byte(f.Body))
		c.Abort()
	}
}
