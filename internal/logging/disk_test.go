package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskSinkWritesAndRotatesFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDiskSink(dir, slog.LevelDebug)
	if err != nil {
		t.Fatalf("NewDiskSink: %v", err)
	}
	defer sink.Close()

	sink.Emit(Envelope{Context: "test", Level: LevelInfo}, "hello world")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".log" {
		t.Fatalf("unexpected log file name %q", entries[0].Name())
	}
}

func TestDiskSinkPrunesFilesOlderThanRetention(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "mongodb-mcp-2000-01-01.log")
	if err := os.WriteFile(old, []byte("stale"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	stale := time.Now().UTC().AddDate(0, 0, -diskRetentionDays-1)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	sink, err := NewDiskSink(dir, slog.LevelDebug)
	if err != nil {
		t.Fatalf("NewDiskSink: %v", err)
	}
	defer sink.Close()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected stale log file to be pruned, stat err=%v", err)
	}
}

func TestDiskSinkEnforcesSizeCap(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, diskCapBytes)
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "mongodb-mcp-2020-0"+string(rune('1'+i))+"-01.log")
		if err := os.WriteFile(name, big, 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		ts := time.Now().UTC().AddDate(0, 0, -1-i)
		os.Chtimes(name, ts, ts)
	}

	sink, err := NewDiskSink(dir, slog.LevelDebug)
	if err != nil {
		t.Fatalf("NewDiskSink: %v", err)
	}
	defer sink.Close()

	var total int64
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	if total > diskCapBytes {
		t.Fatalf("expected directory size under cap after prune, got %d bytes", total)
	}
}
