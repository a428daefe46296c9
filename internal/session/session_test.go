package session

import (
	"context"
	"testing"
	"time"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/keychain"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/logging"
)

type noopCloser struct{ closed bool }

func (n *noopCloser) Close() error { n.closed = true; return nil }

func testSession(t *testing.T) (*Session, *connection.Manager, *noopCloser) {
	t.Helper()
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		return driver.NewFakeHandle(), nil
	}
	conn := connection.New(dial, connection.Identity{ServerName: "mongodb-mcp-server", ServerVersion: "test"})
	closer := &noopCloser{}
	s := New(keychain.New(), logging.New(nil), conn, nil, closer)
	return s, conn, closer
}

func TestSessionHasUniqueID(t *testing.T) {
	s1, _, _ := testSession(t)
	s2, _, _ := testSession(t)
	if s1.ID == "" || s1.ID == s2.ID {
		t.Fatalf("expected distinct non-empty session ids, got %q and %q", s1.ID, s2.ID)
	}
}

func TestServiceProviderFailsWhenNotConnected(t *testing.T) {
	s, _, _ := testSession(t)
	if _, err := s.ServiceProvider(); err == nil {
		t.Fatal("expected error before connecting")
	}
}

func TestServiceProviderSucceedsAfterConnect(t *testing.T) {
	s, _, _ := testSession(t)
	if _, err := s.ConnectToMongoDB(context.Background(), connection.Settings{ConnectionString: "mongodb://localhost:27017"}); err != nil {
		t.Fatalf("ConnectToMongoDB: %v", err)
	}

	// Allow the forwarding goroutine to update connectedAtlasCluster, if any.
	time.Sleep(10 * time.Millisecond)

	if _, err := s.ServiceProvider(); err != nil {
		t.Fatalf("expected service provider after connect, got error: %v", err)
	}
}

func TestSetMcpClientDefaultsUnknownName(t *testing.T) {
	s, _, _ := testSession(t)
	s.SetMcpClient(ClientInfo{})
	if s.clientInfo.Name != "unknown" {
		t.Fatalf("expected default client name 'unknown', got %q", s.clientInfo.Name)
	}
}

func TestCloseClosesExportsManager(t *testing.T) {
	s, _, closer := testSession(t)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closer.closed {
		t.Fatal("expected exports manager to be closed")
	}
}
