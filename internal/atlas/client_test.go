package atlas

import (
	"context"
	"testing"
	"time"
)

func TestFakeClientEnsureAccessListEntryIsIdempotent(t *testing.T) {
	f := NewFakeClient()
	ctx := context.Background()

	if err := f.EnsureAccessListEntry(ctx, "proj1", "203.0.113.5/32"); err != nil {
		t.Fatalf("EnsureAccessListEntry: %v", err)
	}
	if err := f.EnsureAccessListEntry(ctx, "proj1", "203.0.113.5/32"); err != nil {
		t.Fatalf("EnsureAccessListEntry (second call): %v", err)
	}

	entries, _ := f.ListAccessListEntries(ctx, "proj1")
	if len(entries) != 1 {
		t.Fatalf("expected exactly one access list entry after idempotent calls, got %d", len(entries))
	}
}

func TestFakeClientCreateAndDeleteTemporaryDBUser(t *testing.T) {
	f := NewFakeClient()
	ctx := context.Background()

	user, err := f.CreateTemporaryDBUser(ctx, "proj1", "Cluster0", true, 12*time.Hour)
	if err != nil {
		t.Fatalf("CreateTemporaryDBUser: %v", err)
	}
	if user.Roles[0] != "readAnyDatabase" {
		t.Fatalf("expected read-only role for readOnly=true, got %v", user.Roles)
	}

	if err := f.DeleteDBUser(ctx, "proj1", user.Username); err != nil {
		t.Fatalf("DeleteDBUser: %v", err)
	}
	users, _ := f.ListDBUsers(ctx, "proj1")
	if len(users) != 0 {
		t.Fatalf("expected user to be removed, got %d remaining", len(users))
	}
}

func TestFakeClientGetClusterConnectionStringNotFound(t *testing.T) {
	f := NewFakeClient()
	if _, err := f.GetClusterConnectionString(context.Background(), "proj1", "missing"); err == nil {
		t.Fatal("expected error for unknown cluster")
	}
}
