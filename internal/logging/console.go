package logging

import (
	"io"
	"log/slog"
)

// ConsoleSink writes structured log lines to an io.Writer (normally
// os.Stderr) via log/slog, the way the teacher logs throughout its
// packages with slog.Info/slog.Error and structured attributes.
type ConsoleSink struct {
	logger *slog.Logger
}

// NewConsoleSink builds a ConsoleSink writing JSON lines to w at the given
// minimum level.
func NewConsoleSink(w io.Writer, level slog.Level) *ConsoleSink {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &ConsoleSink{logger: slog.New(handler)}
}

func (s *ConsoleSink) Name() string { return "stderr" }

func (s *ConsoleSink) Emit(env Envelope, msg string) {
	attrs := []any{slog.String("context", env.Context)}
	if env.ID != "" {
		attrs = append(attrs, slog.String("id", env.ID))
	}
	switch env.Level {
	case LevelDebug:
		s.logger.Debug(msg, attrs...)
	case LevelWarning:
		s.logger.Warn(msg, attrs...)
	case LevelError:
		s.logger.Error(msg, attrs...)
	default:
		s.logger.Info(msg, attrs...)
	}
}

func (s *ConsoleSink) Close() error { return nil }
