package logging

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeSession struct {
	calls []*mcp.LoggingMessageParams
}

func (f *fakeSession) Log(ctx context.Context, params *mcp.LoggingMessageParams) error {
	f.calls = append(f.calls, params)
	return nil
}

func TestMcpSinkNoopWithoutSession(t *testing.T) {
	sink := NewMcpSink()
	sink.Emit(Envelope{Level: LevelError}, "boom")
}

func TestMcpSinkForwardsAboveMinLevel(t *testing.T) {
	sink := NewMcpSink()
	fake := &fakeSession{}
	sink.SetSession(fake)
	sink.SetLevel(LevelWarning)

	sink.Emit(Envelope{Level: LevelDebug}, "should be dropped")
	if len(fake.calls) != 0 {
		t.Fatalf("expected debug message to be filtered out, got %d calls", len(fake.calls))
	}

	sink.Emit(Envelope{Level: LevelError, Context: "exports"}, "disk full")
	if len(fake.calls) != 1 {
		t.Fatalf("expected one forwarded call, got %d", len(fake.calls))
	}
	if fake.calls[0].Level != "error" {
		t.Fatalf("expected level error, got %q", fake.calls[0].Level)
	}
}

func TestMcpSinkDetachSession(t *testing.T) {
	sink := NewMcpSink()
	fake := &fakeSession{}
	sink.SetSession(fake)
	sink.SetSession(nil)

	sink.Emit(Envelope{Level: LevelError}, "after detach")
	if len(fake.calls) != 0 {
		t.Fatalf("expected no calls after detaching session, got %d", len(fake.calls))
	}
}
