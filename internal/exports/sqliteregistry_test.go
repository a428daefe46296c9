package exports

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteRegistryRecordAndList(t *testing.T) {
	reg, err := NewSQLiteRegistry(DefaultSQLiteRegistryConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	defer reg.Close()

	ctx := context.Background()
	job := Job{
		ExportID:     "exp-1",
		ExportName:   "widgets.json",
		ExportTitle:  "Widgets export",
		Format:       FormatRelaxed,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(time.Hour),
		Status:       StatusRunning,
		AbsolutePath: "/tmp/widgets.json",
		ResourceURI:  ResourceURIFor("exp-1"),
	}
	if err := reg.Record(ctx, job); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := reg.UpdateStatus(ctx, "exp-1", StatusReady, 1024, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	jobs, err := reg.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Status != StatusReady || jobs[0].BytesWritten != 1024 {
		t.Fatalf("expected updated status/bytes, got %+v", jobs[0])
	}
}

func TestSQLiteRegistryRecordIsIdempotent(t *testing.T) {
	reg, err := NewSQLiteRegistry(DefaultSQLiteRegistryConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	defer reg.Close()

	ctx := context.Background()
	job := Job{ExportID: "exp-1", ExportName: "a", ExportTitle: "a", Format: FormatRelaxed, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour), Status: StatusRunning, AbsolutePath: "/tmp/a", ResourceURI: ResourceURIFor("exp-1")}
	reg.Record(ctx, job)
	if err := reg.Record(ctx, job); err != nil {
		t.Fatalf("expected duplicate Record to be a no-op, got error: %v", err)
	}

	jobs, _ := reg.List(ctx, 10)
	if len(jobs) != 1 {
		t.Fatalf("expected exactly 1 job after duplicate record, got %d", len(jobs))
	}
}
