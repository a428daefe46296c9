package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	diskRetentionDays = 30
	diskCapBytes      = 1 << 30 // 1 GiB across all retained log files
)

// DiskSink writes JSON log lines to a daily-rotating file under dir,
// pruning files older than diskRetentionDays and deleting the oldest
// files once the directory's total size exceeds diskCapBytes. The file
// name carries the date so rotation is simply "open a new file when the
// day changes" rather than requiring a background timer.
type DiskSink struct {
	mu     sync.Mutex
	dir    string
	day    string
	file   *os.File
	logger *slog.Logger
	level  slog.Level
}

// NewDiskSink creates (or reuses) dir and opens today's log file.
func NewDiskSink(dir string, level slog.Level) (*DiskSink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	s := &DiskSink{dir: dir, level: level}
	if err := s.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DiskSink) Name() string { return "disk" }

func (s *DiskSink) fileNameFor(day string) string {
	return filepath.Join(s.dir, fmt.Sprintf("mongodb-mcp-%s.log", day))
}

// rotateIfNeeded opens a new file when the UTC day has changed since the
// last write, and prunes old files. Must be called with s.mu held or
// during construction (single-goroutine).
func (s *DiskSink) rotateIfNeeded() error {
	today := time.Now().UTC().Format("2006-01-02")
	if today == s.day && s.file != nil {
		return nil
	}
	if s.file != nil {
		s.file.Close()
	}
	f, err := os.OpenFile(s.fileNameFor(today), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	s.file = f
	s.day = today
	s.logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: s.level}))

	s.pruneLocked()
	return nil
}

func (s *DiskSink) Emit(env Envelope, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeeded(); err != nil {
		return
	}

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

// pruneLocked deletes log files older than diskRetentionDays and, if the
// remaining files still exceed diskCapBytes, deletes the oldest files
// until the directory is back under the cap.
func (s *DiskSink) pruneLocked() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	type logFile struct {
		path    string
		size    int64
		modTime time.Time
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -diskRetentionDays)
	var files []logFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "mongodb-mcp-") || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		full := filepath.Join(s.dir, e.Name())
		if info.ModTime().Before(cutoff) {
			os.Remove(full)
			continue
		}
		files = append(files, logFile{path: full, size: info.Size(), modTime: info.ModTime()})
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= diskCapBytes {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files {
		if total <= diskCapBytes {
			break
		}
		if f.path == s.file.Name() {
			continue
		}
		if err := os.Remove(f.path); err == nil {
			total -= f.size
		}
	}
}

func (s *DiskSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
