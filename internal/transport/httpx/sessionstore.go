// Package httpx serves the MCP server over streamable HTTP on /mcp,
// maintaining one logical MCP session (its own session.Session, driver
// connection, and *mcp.Server) per connected agent.
package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/logging"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/session"
)

// entry is one row of the SessionStore: the live MCP server for this
// session, the session-level collaborators it was built from, and the
// bookkeeping the idle/notification timers and keep-alive loop need.
type entry struct {
	id      string
	sess    *session.Session
	logger  *logging.Logger
	inner   http.Handler // mcp.NewStreamableHTTPHandler bound to this session's *mcp.Server
	created time.Time

	mu               sync.Mutex
	lastSeenAt       time.Time
	idleTimer        *time.Timer
	notifyTimer      *time.Timer
	liveSession      *mcp.ServerSession
	keepAliveCancel  context.CancelFunc
	consecutiveFails int
}

// SessionBuilder constructs everything a freshly initialized session
// needs: its own *mcp.Server (wired via transport.NewMCPServer), the
// session.Session it wraps, and a logger tagged for that session.
// onActive must be threaded through to NewMCPServer's onSessionActive
// parameter so the store can capture the live *mcp.ServerSession for its
// keep-alive loop and expiry warnings.
type SessionBuilder func(id string, onActive func(*mcp.ServerSession)) (*mcp.Server, *session.Session, *logging.Logger, error)

// SessionStore tracks every active HTTP-transport MCP session, keyed by
// the Mcp-Session-Id header value the store itself allocates for new
// sessions.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	idleTimeout   time.Duration
	notifyTimeout time.Duration

	build SessionBuilder
}

// NewSessionStore builds an empty store backed by build for constructing
// new sessions.
func NewSessionStore(idleTimeout, notifyTimeout time.Duration, build SessionBuilder) *SessionStore {
	return &SessionStore{
		entries:       make(map[string]*entry),
		idleTimeout:   idleTimeout,
		notifyTimeout: notifyTimeout,
		build:         build,
	}
}

// Create allocates a new session under id, registers it, and arms its
// timers and keep-alive loop.
func (s *SessionStore) Create(id string) (*entry, error) {
	e := &entry{id: id, created: time.Now(), lastSeenAt: time.Now()}

	server, sess, logger, err := s.build(id, attachLiveSession(e))
	if err != nil {
		return nil, err
	}
	e.sess = sess
	e.logger = logger
	e.inner = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, &mcp.StreamableHTTPOptions{})

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()

	s.arm(e)
	go s.keepAlive(e)
	return e, nil
}

// Get returns the session registered under id, if any.
func (s *SessionStore) Get(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Touch resets id's idle and notification timers; call on every request
// routed to an existing session.
func (s *SessionStore) Touch(id string) {
	e, ok := s.Get(id)
	if !ok {
		return
	}
	e.mu.Lock()
	e.lastSeenAt = time.Now()
	e.mu.Unlock()
	s.arm(e)
}

// arm (re)starts the idle-close and pre-expiry-notification timers for e.
func (s *SessionStore) arm(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	if e.notifyTimer != nil {
		e.notifyTimer.Stop()
	}

	e.idleTimer = time.AfterFunc(s.idleTimeout, func() { s.closeIdle(e.id) })
	if s.notifyTimeout > 0 && s.notifyTimeout < s.idleTimeout {
		e.notifyTimer = time.AfterFunc(s.notifyTimeout, func() { s.warnExpiry(e) })
	}
}

func (s *SessionStore) warnExpiry(e *entry) {
	e.logger.Warning("session %s approaching idle timeout, send a request to keep it alive", e.id)
	e.mu.Lock()
	live := e.liveSession
	e.mu.Unlock()
	if live == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = live.Log(ctx, &mcp.LoggingMessageParams{
		Logger: "session",
		Level:  mcp.LoggingLevel(logging.LevelWarning),
		Data:   map[string]any{"message": "session will close soon due to inactivity"},
	})
}

func (s *SessionStore) closeIdle(id string) {
	s.Close(id)
}

// Close tears down the session registered under id: stops its timers and
// keep-alive loop, closes its session.Session (disconnecting the driver
// and the exports manager), and removes it from the store.
func (s *SessionStore) Close(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	if e.notifyTimer != nil {
		e.notifyTimer.Stop()
	}
	if e.keepAliveCancel != nil {
		e.keepAliveCancel()
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.sess.Close(ctx); err != nil {
		e.logger.Error("failed to close session %s: %v", id, err)
	}
}

// CloseAll tears down every active session, for process shutdown.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Close(id)
	}
}

const keepAliveInterval = 30 * time.Second
const maxConsecutiveKeepAliveFailures = 3

// keepAlive sends a JSON-RPC ping to the session's live client connection
// every 30 seconds once one has attached (set via onSessionActive in
// NewMCPServer), closing the session after three consecutive failures.
func (s *SessionStore) keepAlive(e *entry) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.keepAliveCancel = cancel
	e.mu.Unlock()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			live := e.liveSession
			e.mu.Unlock()
			if live == nil {
				continue
			}
			if err := live.Ping(ctx, nil); err != nil {
				e.mu.Lock()
				e.consecutiveFails++
				fails := e.consecutiveFails
				e.mu.Unlock()
				e.logger.Warning("keep-alive ping failed for session %s (%d/%d): %v", e.id, fails, maxConsecutiveKeepAliveFailures, err)
				if fails >= maxConsecutiveKeepAliveFailures {
					e.logger.Error("session %s failed %d consecutive keep-alive pings, closing", e.id, fails)
					go s.Close(e.id)
					return
				}
				continue
			}
			e.mu.Lock()
			e.consecutiveFails = 0
			e.mu.Unlock()
		}
	}
}

// attachLiveSession records ss as the session's live connection, used by
// both the keep-alive loop and the idle-expiry warning notification.
func attachLiveSession(e *entry) func(*mcp.ServerSession) {
	return func(ss *mcp.ServerSession) {
		e.mu.Lock()
		e.liveSession = ss
		e.mu.Unlock()
	}
}
