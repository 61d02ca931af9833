package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/agentplatform/logger"
)

// TraceHeader carries the per-response trace id.
const TraceHeader = "X-Tt-Logid"

// Fault replaces the normal response of a route.
type Fault struct {
	Status      int
	ContentType string
	Body        string
}

// ReplyFunc produces the answer chunks streamed for a query.
type ReplyFunc func(query string) []string

// Server is the fake platform. It is safe for concurrent use.
type Server struct {
	engine *gin.Engine
	log    *logger.Logger

	token     string
	accessKey string
	reply     ReplyFunc
	delay     time.Duration

	mu            sync.Mutex
	faults        map[string]Fault
	conversations map[string]*conversation
	seq           int
	requests      []Recorded
}

// Recorded is a request the server received.
type Recorded struct {
	Method    string
	Path      string
	RequestID string
	Body      map[string]any
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithAccessKey requires requests signed with the given access key.
func WithAccessKey(ak string) Option {
	return func(s *Server) { s.accessKey = ak }
}

// WithReply overrides the default echo reply.
func WithReply(fn ReplyFunc) Option {
	return func(s *Server) { s.reply = fn }
}

// WithFrameDelay pauses between streamed frames.
func WithFrameDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		reply:         echoReply,
		faults:        make(map[string]Fault),
		conversations: make(map[string]*conversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithComponent("mockserver")
	}

	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(recovery(s.log), requestID(), traceID(), requestLogger(s.log), s.record())
	e.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := e.Group("/", s.auth(), s.fault())
	api.POST(pathChatQuery, s.chatQuery)
	api.POST(pathChatCancel, s.chatCancel)
	api.POST(pathCreateConversation, s.createConversation)
	api.POST(pathUpdateConversation, s.updateConversation)

	s.engine = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetFault makes path answer with f until ClearFaults.
func (s *Server) SetFault(path string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = f
}

// ClearFaults restores normal responses.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]Fault)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// ListenAndServe serves on addr until ctx is cancelled. HTTP/2 cleartext is
// accepted alongside HTTP/1.1.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mockserver: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(s.engine, &http2.Server{IdleTimeout: 120 * time.Second}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("mock platform listening", logger.Fields("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mockserver: shutdown: %w", err)
	}
	return nil
}

func (s *Server) nextID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func echoReply(query string) []string {
	words := strings.Fields("echo: " + query)
	out := make([]string, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		out[i] = w
	}
	return out
}
