package tools

import (
	"context"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/config"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/session"
)

func newConnectedRequestContext(t *testing.T, handle *driver.FakeHandle) *RequestContext {
	t.Helper()
	dial := func(ctx context.Context, uri string) (driver.Handle, error) { return handle, nil }
	conn := connection.New(dial, connection.Identity{ServerName: "test", ServerVersion: "0.0.0"})
	if _, err := conn.Connect(context.Background(), connection.Settings{ConnectionString: "mongodb://localhost/?appName=test"}); err != nil {
		t.Fatalf("connect fake handle: %v", err)
	}
	sess := session.New(nil, nil, conn, nil, nil)
	return &RequestContext{Session: sess, Config: &config.Config{}}
}

func TestFindToolReturnsWrappedDocuments(t *testing.T) {
	handle := driver.NewFakeHandle()
	handle.Docs["testdb.widgets"] = []bson.D{{{Key: "_id", Value: 1}, {Key: "name", Value: "gadget"}}}
	rc := newConnectedRequestContext(t, handle)

	tool := findTool()
	args, err := bson.MarshalExtJSON(bson.M{"database": "testdb", "collection": "widgets"}, false, false)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := tool.Run(context.Background(), rc, args)
	if err != nil {
		t.Fatalf("find returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error text %q", result.Text)
	}
	if !strings.Contains(result.Text, "gadget") {
		t.Fatalf("expected result to contain document contents, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "untrusted-user-data") {
		t.Fatalf("expected result to be wrapped in an untrusted-data envelope, got %q", result.Text)
	}
}

func TestDeleteManyToolDeletesMatchingDocuments(t *testing.T) {
	handle := driver.NewFakeHandle()
	handle.Docs["testdb.widgets"] = []bson.D{{{Key: "_id", Value: 1}}}
	rc := newConnectedRequestContext(t, handle)

	tool := deleteManyTool()
	args, err := bson.MarshalExtJSON(bson.M{"database": "testdb", "collection": "widgets", "filter": bson.M{}}, false, false)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := tool.Run(context.Background(), rc, args)
	if err != nil {
		t.Fatalf("delete-many returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error text %q", result.Text)
	}
	if _, ok := handle.Docs["testdb.widgets"]; ok {
		t.Fatalf("expected widgets collection to be removed from the fake store")
	}
}

func TestEnsureConnectedFailsWithoutConnectionString(t *testing.T) {
	dial := func(ctx context.Context, uri string) (driver.Handle, error) { return nil, nil }
	conn := connection.New(dial, connection.Identity{ServerName: "test", ServerVersion: "0.0.0"})
	sess := session.New(nil, nil, conn, nil, nil)
	rc := &RequestContext{Session: sess, Config: &config.Config{}}

	if _, err := ensureConnected(context.Background(), rc); err == nil {
		t.Fatalf("expected ensureConnected to fail when disconnected with no configured connection string")
	}
}
