package exports

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
)

func testCursor(t *testing.T, docs []bson.D) driver.Cursor {
	t.Helper()
	handle := driver.NewFakeHandle()
	handle.Docs["testdb.widgets"] = docs
	cur, err := handle.Find(context.Background(), "testdb", "widgets", nil, driver.FindOptions{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	return cur
}

func waitForStatus(t *testing.T, m *Manager, exportID string, status Status) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := m.get(exportID); ok && job.Status == status {
			return *job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("export job %s did not reach status %s in time", exportID, status)
	return Job{}
}

func TestCreateJSONExportWritesFileAndReachesReady(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, WithCleanupInterval(time.Hour))
	defer m.Close()

	docs := []bson.D{{{Key: "name", Value: "widget-a"}}, {{Key: "name", Value: "widget-b"}}}
	result, err := m.CreateJSONExport(context.Background(), CreateJSONExportInput{
		Cursor:     testCursor(t, docs),
		ExportName: "widgets.json",
	})
	if err != nil {
		t.Fatalf("CreateJSONExport: %v", err)
	}
	if result.ExportURI != ResourceURIFor(result.ExportID) {
		t.Fatalf("unexpected export URI: %s", result.ExportURI)
	}

	job := waitForStatus(t, m, result.ExportID, StatusReady)
	if job.BytesWritten == 0 {
		t.Fatalf("expected bytes written to be recorded")
	}

	data, err := os.ReadFile(result.AbsolutePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected export file to contain data")
	}
}

func TestGetReturnsStillRunningBeforeCompletion(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, WithCleanupInterval(time.Hour))
	defer m.Close()

	m.mu.Lock()
	m.jobs["stuck"] = &Job{ExportID: "stuck", Status: StatusRunning, ExpiresAt: time.Now().Add(time.Hour)}
	m.mu.Unlock()

	if _, err := m.Get("stuck"); err != ErrExportStillRunning {
		t.Fatalf("expected ErrExportStillRunning, got %v", err)
	}
}

func TestGetReturnsNotFoundForUnknownExport(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, WithCleanupInterval(time.Hour))
	defer m.Close()

	if _, err := m.Get("does-not-exist"); err != ErrExportNotFound {
		t.Fatalf("expected ErrExportNotFound, got %v", err)
	}
}

func TestSweepExpiresAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	notified := make(chan Job, 1)
	m := NewManager(dir, WithCleanupInterval(10*time.Millisecond), WithNotifyFunc(func(job Job) {
		notified <- job
	}))
	defer m.Close()

	docs := []bson.D{{{Key: "name", Value: "widget-a"}}}
	result, err := m.CreateJSONExport(context.Background(), CreateJSONExportInput{
		Cursor:     testCursor(t, docs),
		ExportName: "widgets.json",
	})
	if err != nil {
		t.Fatalf("CreateJSONExport: %v", err)
	}
	waitForStatus(t, m, result.ExportID, StatusReady)
	if job := <-notified; job.Status != StatusReady {
		t.Fatalf("expected ready notification before expiry, got %s", job.Status)
	}

	m.mu.Lock()
	m.jobs[result.ExportID].ExpiresAt = time.Now().Add(-time.Second)
	m.mu.Unlock()

	select {
	case job := <-notified:
		if job.Status != StatusExpired {
			t.Fatalf("expected expired notification, got %s", job.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for expiry notification")
	}

	if _, err := os.Stat(result.AbsolutePath); !os.IsNotExist(err) {
		t.Fatalf("expected export file to be removed, stat err: %v", err)
	}
	if _, err := m.Get(result.ExportID); err != ErrExportNotFound {
		t.Fatalf("expected ErrExportNotFound after sweep, got %v", err)
	}
}

func TestCreateJSONExportFailsWhenCursorErrors(t *testing.T) {
	dir := t.TempDir()
	notified := make(chan Job, 1)
	m := NewManager(dir, WithCleanupInterval(time.Hour), WithNotifyFunc(func(job Job) {
		notified <- job
	}))
	defer m.Close()

	result, err := m.CreateJSONExport(context.Background(), CreateJSONExportInput{
		Cursor:     &erroringCursor{},
		ExportName: "broken.json",
	})
	if err != nil {
		t.Fatalf("CreateJSONExport: %v", err)
	}

	job := waitForStatus(t, m, result.ExportID, StatusFailed)
	if job.FailureReason == "" {
		t.Fatalf("expected failure reason to be set")
	}
}

type erroringCursor struct{}

func (c *erroringCursor) Next(ctx context.Context) bool   { return false }
func (c *erroringCursor) Decode(out any) error            { return nil }
func (c *erroringCursor) Err() error                      { return os.ErrClosed }
func (c *erroringCursor) Close(ctx context.Context) error { return nil }
