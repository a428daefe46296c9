package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
)

func testIdentity() Identity {
	return Identity{ServerName: "mongodb-mcp-server", ServerVersion: "test", DeviceID: "dev1"}
}

func TestConnectSucceedsAndEmitsEvents(t *testing.T) {
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		return driver.NewFakeHandle(), nil
	}
	m := New(dial, testIdentity())
	events := m.Subscribe()

	state, err := m.Connect(context.Background(), Settings{ConnectionString: "mongodb://localhost:27017"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if state.State != StateConnected {
		t.Fatalf("expected connected, got %s", state.State)
	}

	var types []EventType
	for i := 0; i < 2; i++ {
		select {
		case evt := <-events:
			types = append(types, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	if types[0] != EventConnectionRequested || types[1] != EventConnectionSucceeded {
		t.Fatalf("unexpected event sequence: %v", types)
	}
}

func TestConnectFailsOnDialError(t *testing.T) {
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		return nil, errors.New("no route to host")
	}
	m := New(dial, testIdentity())

	state, err := m.Connect(context.Background(), Settings{ConnectionString: "mongodb://unreachable:27017"})
	if err == nil {
		t.Fatal("expected error")
	}
	if state.State != StateErrored {
		t.Fatalf("expected errored, got %s", state.State)
	}
}

func TestConnectFailsOnPingError(t *testing.T) {
	fake := driver.NewFakeHandle()
	fake.PingErr = errors.New("auth failed")
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		return fake, nil
	}
	m := New(dial, testIdentity())

	state, err := m.Connect(context.Background(), Settings{ConnectionString: "mongodb://localhost:27017"})
	if err == nil {
		t.Fatal("expected error")
	}
	if state.State != StateErrored {
		t.Fatalf("expected errored, got %s", state.State)
	}
}

func TestConnectDisconnectsExistingConnectionFirst(t *testing.T) {
	var closed int
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		fake := driver.NewFakeHandle()
		return &countingHandle{FakeHandle: fake, closedCount: &closed}, nil
	}
	m := New(dial, testIdentity())

	if _, err := m.Connect(context.Background(), Settings{ConnectionString: "mongodb://a:27017"}); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if _, err := m.Connect(context.Background(), Settings{ConnectionString: "mongodb://b:27017"}); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected first handle to be closed exactly once, got %d", closed)
	}
}

func TestDisconnectTransitionsToDisconnected(t *testing.T) {
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		return driver.NewFakeHandle(), nil
	}
	m := New(dial, testIdentity())
	m.Connect(context.Background(), Settings{ConnectionString: "mongodb://localhost:27017"})

	state, err := m.Disconnect(context.Background())
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if state.State != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", state.State)
	}
	if state.Handle != nil {
		t.Fatal("expected no handle exposed after disconnect")
	}
}

func TestConnectOIDCTransitionsToConnectingThenConnected(t *testing.T) {
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		return driver.NewFakeHandle(), nil
	}
	m := New(dial, testIdentity(), WithBrowserAvailable(false))
	events := m.Subscribe()

	uri := "mongodb+srv://cluster0.example.mongodb.net/?authMechanism=MONGODB-OIDC"
	state, err := m.Connect(context.Background(), Settings{ConnectionString: uri})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if state.State != StateConnecting {
		t.Fatalf("expected connecting for OIDC, got %s", state.State)
	}

	<-events // connection-requested
	<-events // connection-requested (transition to connecting)

	select {
	case evt := <-events:
		if evt.Type != EventConnectionSucceeded || evt.State.State != StateConnected {
			t.Fatalf("expected async connected event, got %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async OIDC verification to complete")
	}
}

type countingHandle struct {
	*driver.FakeHandle
	closedCount *int
}

func (c *countingHandle) Close(ctx context.Context) error {
	*c.closedCount++
	return nil
}
