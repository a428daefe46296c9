// Package session wraps one ConnectionManager per connected agent
// (1:1 lifetime), re-emitting its events as session-level events for the
// transport layer, and aggregates the other per-client collaborators
// (Keychain, Logger, ExportsManager, Atlas client).
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/atlas"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/keychain"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/logging"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/mcperrors"
)

// ClientInfo records the agent's identity as reported during MCP
// initialization.
type ClientInfo struct {
	Name    string
	Version string
	Title   string
}

// EventType mirrors the session-level events re-emitted from the
// underlying ConnectionManager.
type EventType string

const (
	EventConnect         EventType = "connect"
	EventDisconnect      EventType = "disconnect"
	EventConnectionError EventType = "connection-error"
)

// Event is a session-level notification derived from a connection.Event.
type Event struct {
	Type  EventType
	State connection.ConnectionState
}

// Closer is anything the session must tear down on Close.
type Closer interface {
	Close() error
}

// Session is the per-client aggregate: one ConnectionManager, one
// Keychain, one Logger, one ExportsManager (injected as a Closer so this
// package doesn't import exports and create a cycle), one Atlas client.
type Session struct {
	ID       string
	Keychain *keychain.Keychain
	Logger   *logging.Logger
	Conn     *connection.Manager
	Atlas    atlas.Client
	Exports  Closer

	clientInfo ClientInfo

	connectedAtlasCluster *connection.AtlasRef

	subscribers []chan Event
}

// New builds a Session with a fresh sessionId, wrapping conn.
func New(kc *keychain.Keychain, logger *logging.Logger, conn *connection.Manager, atlasClient atlas.Client, exports Closer) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Keychain: kc,
		Logger:   logger,
		Conn:     conn,
		Atlas:    atlasClient,
		Exports:  exports,
	}
	go s.forwardConnectionEvents(conn.Subscribe())
	return s
}

func (s *Session) forwardConnectionEvents(ch <-chan connection.Event) {
	for evt := range ch {
		var eventType EventType
		switch evt.Type {
		case connection.EventConnectionSucceeded:
			eventType = EventConnect
			if evt.State.State == connection.StateConnected && evt.State.Atlas != nil {
				s.connectedAtlasCluster = evt.State.Atlas
			}
		case connection.EventConnectionClosed:
			eventType = EventDisconnect
			s.connectedAtlasCluster = nil
		case connection.EventConnectionErrored:
			eventType = EventConnectionError
		default:
			continue
		}
		s.broadcast(Event{Type: eventType, State: evt.State})
	}
}

// Subscribe registers a channel for session-level events.
func (s *Session) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Session) broadcast(evt Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SetMcpClient records the agent's identity and propagates its name to
// the connection manager for appName generation.
func (s *Session) SetMcpClient(info ClientInfo) {
	if info.Name == "" {
		info.Name = "unknown"
	}
	s.clientInfo = info
	s.Conn.SetClientName(info.Name)
}

// ConnectToMongoDB delegates to the underlying connection manager.
func (s *Session) ConnectToMongoDB(ctx context.Context, settings connection.Settings) (connection.ConnectionState, error) {
	return s.Conn.Connect(ctx, settings)
}

// Disconnect delegates to the underlying connection manager.
func (s *Session) Disconnect(ctx context.Context) (connection.ConnectionState, error) {
	return s.Conn.Disconnect(ctx)
}

// ServiceProvider returns the live driver handle, failing with
// NotConnectedToMongoDB if the connection isn't in the connected state.
func (s *Session) ServiceProvider() (driver.Handle, error) {
	state := s.Conn.CurrentState()
	if state.State != connection.StateConnected || state.Handle == nil {
		return nil, mcperrors.New(mcperrors.KindNotConnected, "not connected to MongoDB")
	}
	return state.Handle, nil
}

// ConnectedAtlasCluster returns the Atlas project/cluster the session is
// currently connected to, if any. It is not set while a connection is
// still connecting.
func (s *Session) ConnectedAtlasCluster() *connection.AtlasRef {
	return s.connectedAtlasCluster
}

// Close disconnects, closes the Atlas-derived resources, and closes the
// exports manager.
func (s *Session) Close(ctx context.Context) error {
	if _, err := s.Conn.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect on close: %w", err)
	}
	if s.Atlas != nil {
		if err := s.Atlas.Close(); err != nil {
			return fmt.Errorf("close atlas client: %w", err)
		}
	}
	if s.Exports != nil {
		if err := s.Exports.Close(); err != nil {
			return fmt.Errorf("close exports manager: %w", err)
		}
	}
	return nil
}
