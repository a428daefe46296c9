package logging

// NoRedactionHint controls per-sink redaction for a single log call. Its
// zero value (nil stored in Envelope.NoRedactionHint) means the default policy:
// redact on every sink except the mcp sink.
type NoRedactionHint struct {
	// All, when true, disables redaction on every sink.
	All bool
	// None, when true (and All is false), forces redaction on every sink,
	// including mcp.
	None bool
	// Sinks, when non-empty, names the specific sinks that should skip
	// redaction; all others still redact.
	Sinks []string
}

// Envelope is the structured payload a Logger call passes to every sink.
type Envelope struct {
	ID              string
	Context         string
	Level           Level
	Message         string
	Args            []any
	NoRedactionHint *NoRedactionHint
}

// Level mirrors the MCP logging levels the mcp sink forwards as
// notifications/message.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// skipsRedactionFor reports whether sinkName should receive the raw
// (unredacted) message for this envelope.
func (e *Envelope) skipsRedactionFor(sinkName string) bool {
	hint := e.NoRedactionHint
	if hint == nil {
		// Default: redact everywhere except mcp.
		return sinkName == "mcp"
	}
	if hint.All {
		return true
	}
	if hint.None {
		return false
	}
	for _, s := range hint.Sinks {
		if s == sinkName {
			return true
		}
	}
	return false
}
