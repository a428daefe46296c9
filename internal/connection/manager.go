package connection

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/logging"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/mcperrors"
)

// Settings is the input to Connect.
type Settings struct {
	ConnectionString string
	Atlas            *AtlasRef
}

// Dialer opens a driver handle for a connection string. Production code
// passes driver.Connect; tests pass a fake.
type Dialer func(ctx context.Context, uri string) (driver.Handle, error)

// Identity describes the server and client for appName injection.
type Identity struct {
	ServerName    string
	ServerVersion string
	DeviceID      string
	ClientName    string
}

func (id Identity) appName() string {
	name := id.ClientName
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("%s+%s+%s+%s", id.ServerName, id.ServerVersion, id.DeviceID, name)
}

// Manager is the connection manager state machine. It owns at most one
// driver handle at a time and is the single broadcast point for
// connection events; all mutation goes through changeState.
type Manager struct {
	mu            sync.RWMutex
	state         ConnectionState
	subscribers   []chan Event
	identity      Identity
	dial          Dialer
	canUseBrowser bool
	logger        *logging.Logger
}

// Option configures a Manager at construction.
type Option func(*Manager)

func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithBrowserAvailable(available bool) Option {
	return func(m *Manager) { m.canUseBrowser = available }
}

// New builds a Manager in the disconnected state.
func New(dial Dialer, identity Identity, opts ...Option) *Manager {
	m := &Manager{
		state:    ConnectionState{State: StateDisconnected},
		dial:     dial,
		identity: identity,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetClientName records the agent's client name, used in appName
// generation for subsequent connects.
func (m *Manager) SetClientName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity.ClientName = name
}

// CurrentState returns a snapshot of the manager's state.
func (m *Manager) CurrentState() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers a new event channel. The channel is buffered so a
// slow subscriber doesn't stall the manager; events are dropped for that
// subscriber (not globally) if its buffer fills, since connection events
// are a best-effort notification channel, not a log.
func (m *Manager) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

func (m *Manager) broadcast(evt Event) {
	m.mu.RLock()
	subs := make([]chan Event, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// changeState is the single mutation point for m.state; every transition
// goes through here so broadcast and state mutation can never drift
// apart.
func (m *Manager) changeState(next ConnectionState, eventType EventType) ConnectionState {
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()
	m.broadcast(Event{Type: eventType, State: next})
	return next
}

// Connect runs the connect protocol described for the connection
// manager: emit connection-requested, settle any existing connection,
// inject appName, infer auth type, dial the driver, and either complete
// synchronously (non-OIDC) or transition to connecting and verify the
// handle asynchronously (OIDC).
func (m *Manager) Connect(ctx context.Context, settings Settings) (ConnectionState, error) {
	preTransition := m.CurrentState()
	m.broadcast(Event{Type: EventConnectionRequested, State: preTransition})

	if preTransition.State == StateConnected || preTransition.State == StateConnecting {
		if _, err := m.Disconnect(ctx); err != nil {
			return m.CurrentState(), err
		}
	}

	uri, err := injectAppName(settings.ConnectionString, m.currentIdentity())
	if err != nil {
		errored := ConnectionState{State: StateErrored, Reason: err.Error(), Atlas: settings.Atlas}
		m.changeState(errored, EventConnectionErrored)
		return errored, mcperrors.Wrap(mcperrors.KindMisconfiguredString, "invalid connection string", err)
	}

	authType := driver.InferAuthType(uri, m.canUseBrowser)

	handle, err := m.dial(ctx, uri)
	if err != nil {
		errored := ConnectionState{State: StateErrored, AuthType: authType, Reason: err.Error(), Atlas: settings.Atlas}
		m.changeState(errored, EventConnectionErrored)
		return errored, mcperrors.Wrap(mcperrors.KindMisconfiguredString, "driver rejected connection string", err)
	}

	if authType.IsOIDC() {
		connecting := ConnectionState{State: StateConnecting, Handle: handle, AuthType: authType, Atlas: settings.Atlas}
		m.changeState(connecting, EventConnectionRequested)
		go m.verifyOIDCHandle(context.Background(), handle, authType, settings.Atlas)
		return connecting, nil
	}

	if err := handle.Ping(ctx); err != nil {
		handle.Close(context.Background())
		errored := ConnectionState{State: StateErrored, AuthType: authType, Reason: err.Error(), Atlas: settings.Atlas}
		m.changeState(errored, EventConnectionErrored)
		return errored, mcperrors.Wrap(mcperrors.KindNotConnected, "hello command failed", err)
	}

	connected := ConnectionState{State: StateConnected, Handle: handle, AuthType: authType, Atlas: settings.Atlas}
	m.changeState(connected, EventConnectionSucceeded)
	return connected, nil
}

// verifyOIDCHandle runs the fire-and-forget hello probe for OIDC
// connects. Its terminal success is otherwise driven by an
// auth-succeeded event from the driver's auth bus in a full OIDC client;
// here the probe itself is the terminal signal since the narrowed Handle
// interface has no separate auth event bus.
func (m *Manager) verifyOIDCHandle(ctx context.Context, handle driver.Handle, authType driver.AuthType, atlas *AtlasRef) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := handle.Ping(ctx); err != nil {
		handle.Close(context.Background())
		m.changeState(ConnectionState{State: StateErrored, AuthType: authType, Reason: err.Error(), Atlas: atlas}, EventConnectionErrored)
		if m.logger != nil {
			m.logger.Error("oidc verification failed: %v", err)
		}
		return
	}
	m.changeState(ConnectionState{State: StateConnected, Handle: handle, AuthType: authType, Atlas: atlas}, EventConnectionSucceeded)
}

// SetOIDCPrompt records the device-flow verification URL/user code for
// the in-progress OIDC connect and re-announces connection-requested, per
// spec's "transition to connecting with {oidcLoginUrl, oidcUserCode} and
// emit connection-requested" for the device-flow notification. A no-op if
// the manager has since moved off the connecting state this call targets
// (e.g. the probe already failed or a new connect superseded it).
func (m *Manager) SetOIDCPrompt(loginURL, userCode string) {
	m.mu.Lock()
	if m.state.State != StateConnecting {
		m.mu.Unlock()
		return
	}
	next := m.state
	next.OIDCLoginURL = loginURL
	next.OIDCUserCode = userCode
	m.state = next
	m.mu.Unlock()
	m.broadcast(Event{Type: EventConnectionRequested, State: next})
}

// Disconnect closes the current driver handle, if any, and transitions
// to disconnected, keeping the Atlas context of the closed connection.
// The next Connect replaces it with its own settings' Atlas (nil clears
// it).
func (m *Manager) Disconnect(ctx context.Context) (ConnectionState, error) {
	current := m.CurrentState()
	if current.Handle != nil {
		if err := current.Handle.Close(ctx); err != nil {
			return current, fmt.Errorf("close driver handle: %w", err)
		}
	}
	next := ConnectionState{State: StateDisconnected, Atlas: current.Atlas}
	m.changeState(next, EventConnectionClosed)
	return next, nil
}

func (m *Manager) currentIdentity() Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// injectAppName adds an appName query parameter derived from identity if
// the connection string doesn't already specify one.
func injectAppName(connectionString string, identity Identity) (string, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return "", fmt.Errorf("parse connection string: %w", err)
	}
	q := u.Query()
	if q.Get("appName") == "" {
		q.Set("appName", identity.appName())
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
