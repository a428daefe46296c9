// Package connection implements the connection manager: a state
// machine owning exactly one driver handle at a time, broadcasting typed
// events on every transition. Grounded on the fan-out/mutex-guarded-map
// shape of the teacher's cluster connection manager, narrowed from
// "many clusters" to "one connection, many subscribers" (Session,
// Logger, Telemetry all watch the same manager).
package connection

import (
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
)

// State names the tagged variant a ConnectionState is in.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateErrored      State = "errored"
)

// AtlasRef carries the Atlas project/cluster context through connecting
// -> connected -> disconnected, preserved until explicitly cleared.
type AtlasRef struct {
	ProjectID   string
	ClusterName string
}

// ConnectionState is the immutable snapshot handed to subscribers and
// returned by Connect/Disconnect/CurrentState. Only Connected exposes a
// usable driver handle; only Connecting may carry OIDC prompt data.
type ConnectionState struct {
	State        State
	Handle       driver.Handle
	AuthType     driver.AuthType
	OIDCLoginURL string
	OIDCUserCode string
	Atlas        *AtlasRef
	Reason       string
}

// EventType enumerates the broadcast events, matching spec's connection
// event vocabulary exactly.
type EventType string

const (
	EventConnectionRequested EventType = "connection-requested"
	EventConnectionSucceeded EventType = "connection-succeeded"
	EventConnectionTimedOut  EventType = "connection-timed-out"
	EventConnectionClosed    EventType = "connection-closed"
	EventConnectionErrored   EventType = "connection-errored"
)

// Event is one broadcast notification. State is the state as of this
// event, not necessarily the manager's current state by the time a slow
// subscriber reads it.
type Event struct {
	Type  EventType
	State ConnectionState
}
