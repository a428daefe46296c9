package logging

import (
	"context"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sendSession is the subset of *mcp.ServerSession the mcp sink needs. It
// exists so the sink can be exercised without a live MCP connection.
type sendSession interface {
	Log(ctx context.Context, params *mcp.LoggingMessageParams) error
}

// McpSink forwards log envelopes to the client as notifications/message,
// per the MCP logging capability. It has no active session until one
// connects, at which point the transport layer calls SetSession; before
// that, and after the session goes away, Emit is a no-op rather than an
// error, since logging must never block or fail the operation it is
// describing.
type McpSink struct {
	mu      sync.RWMutex
	session sendSession
	level   Level
	timeout time.Duration
}

// NewMcpSink creates an McpSink with no session attached. Its minimum
// level starts at LevelInfo and changes only through SetLevel, in response
// to the client's logging/setLevel.
func NewMcpSink() *McpSink {
	return &McpSink{level: LevelInfo, timeout: 5 * time.Second}
}

func (s *McpSink) Name() string { return "mcp" }

// SetSession attaches (or detaches, with nil) the live server session.
func (s *McpSink) SetSession(session sendSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// SetLevel updates the minimum level the client wants to receive, in
// response to a logging/setLevel request.
func (s *McpSink) SetLevel(level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

var levelRank = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

func (s *McpSink) Emit(env Envelope, msg string) {
	s.mu.RLock()
	session := s.session
	minLevel := s.level
	s.mu.RUnlock()

	if session == nil {
		return
	}
	if levelRank[env.Level] < levelRank[minLevel] {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data := map[string]any{"message": msg}
	if env.ID != "" {
		data["id"] = env.ID
	}
	_ = session.Log(ctx, &mcp.LoggingMessageParams{
		Logger: env.Context,
		Level:  mcp.LoggingLevel(env.Level),
		Data:   data,
	})
}

func (s *McpSink) Close() error { return nil }
