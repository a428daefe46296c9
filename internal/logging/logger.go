package logging

import (
	"fmt"
	"sync"
)

// Logger fans a single log call out to every registered sink, letting
// each sink independently decide (through Envelope.skipsRedactionFor)
// whether it receives the raw or redacted message.
type Logger struct {
	mu       sync.RWMutex
	sinks    []Sink
	redactor *Redactor
	context  string
}

// New builds a Logger writing through sinks, redacting with redactor.
func New(redactor *Redactor, sinks ...Sink) *Logger {
	return &Logger{sinks: sinks, redactor: redactor}
}

// With returns a copy of the logger that tags every envelope with ctx
// (the component name, e.g. "connectionManager" or "exportsManager").
func (l *Logger) With(ctx string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{sinks: l.sinks, redactor: l.redactor, context: ctx}
}

func (l *Logger) log(level Level, hint *NoRedactionHint, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	env := Envelope{Context: l.context, Level: level, Message: msg, Args: args, NoRedactionHint: hint}

	l.mu.RLock()
	sinks := l.sinks
	l.mu.RUnlock()

	for _, sink := range sinks {
		out := msg
		if !env.skipsRedactionFor(sink.Name()) && l.redactor != nil {
			out = l.redactor.Redact(out)
		}
		sink.Emit(env, out)
	}
}

func (l *Logger) Debug(format string, args ...any)   { l.log(LevelDebug, nil, format, args...) }
func (l *Logger) Info(format string, args ...any)     { l.log(LevelInfo, nil, format, args...) }
func (l *Logger) Warning(format string, args ...any)  { l.log(LevelWarning, nil, format, args...) }
func (l *Logger) Error(format string, args ...any)    { l.log(LevelError, nil, format, args...) }

// WithRedactionHint logs a single message using a non-default redaction
// policy, e.g. to let a diagnostics tool surface an unredacted URL to the
// mcp sink only.
func (l *Logger) WithRedactionHint(level Level, hint *NoRedactionHint, format string, args ...any) {
	l.log(level, hint, format, args...)
}

// AddSink registers an additional sink after construction, used when the
// mcp sink only becomes available once a client session connects.
func (l *Logger) AddSink(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Close closes every sink, collecting the first error encountered.
func (l *Logger) Close() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
