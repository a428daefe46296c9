package logging

import (
	"strings"
	"sync"
	"testing"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/keychain"
)

type recordingSink struct {
	mu   sync.Mutex
	name string
	msgs []string
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Emit(env Envelope, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSink) Close() error { return nil }

func TestLoggerRedactsPerSink(t *testing.T) {
	kc := keychain.New()
	kc.Register("sup3rSecret", keychain.KindPassword)
	redactor := NewRedactor(kc)

	stderr := &recordingSink{name: "stderr"}
	mcpSink := &recordingSink{name: "mcp"}
	logger := New(redactor, stderr, mcpSink)

	logger.Info("connected with password %s", "sup3rSecret")

	if strings.Contains(stderr.msgs[0], "sup3rSecret") {
		t.Fatalf("expected stderr sink to receive redacted message, got %q", stderr.msgs[0])
	}
	if !strings.Contains(mcpSink.msgs[0], "sup3rSecret") {
		t.Fatalf("expected mcp sink to receive raw message by default, got %q", mcpSink.msgs[0])
	}
}

func TestLoggerWithTagsContext(t *testing.T) {
	sink := &recordingSink{name: "stderr"}
	logger := New(nil, sink).With("exportsManager")
	logger.Warning("job %s expired", "abc123")

	if !strings.Contains(sink.msgs[0], "abc123") {
		t.Fatalf("expected formatted message, got %q", sink.msgs[0])
	}
}

func TestLoggerRedactionHintAll(t *testing.T) {
	kc := keychain.New()
	kc.Register("topsecret", keychain.KindPassword)
	redactor := NewRedactor(kc)

	stderr := &recordingSink{name: "stderr"}
	logger := New(redactor, stderr)

	logger.WithRedactionHint(LevelDebug, &NoRedactionHint{All: true}, "raw value %s", "topsecret")
	if !strings.Contains(stderr.msgs[0], "topsecret") {
		t.Fatalf("expected unredacted message when hint.All is set, got %q", stderr.msgs[0])
	}
}

func TestLoggerAddSinkAfterConstruction(t *testing.T) {
	logger := New(nil)
	sink := &recordingSink{name: "disk"}
	logger.AddSink(sink)
	logger.Error("disk full")

	if len(sink.msgs) != 1 {
		t.Fatalf("expected sink added post-construction to receive the message")
	}
}
