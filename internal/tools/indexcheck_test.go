package tools

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/mcperrors"
)

func explainRaw(t *testing.T, winningPlan bson.M) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(bson.M{"queryPlanner": bson.M{"winningPlan": winningPlan}})
	if err != nil {
		t.Fatalf("marshal explain doc: %v", err)
	}
	return raw
}

func TestCheckNotCollscanPassesForIndexScan(t *testing.T) {
	handle := driver.NewFakeHandle()
	handle.Explains["testdb"] = explainRaw(t, bson.M{"stage": "IXSCAN"})

	if err := checkNotCollscan(context.Background(), handle, "testdb", bson.D{{Key: "explain", Value: bson.D{}}}); err != nil {
		t.Fatalf("expected no error for an index scan, got %v", err)
	}
}

func TestCheckNotCollscanFailsForCollectionScan(t *testing.T) {
	handle := driver.NewFakeHandle()
	handle.Explains["testdb"] = explainRaw(t, bson.M{"stage": "COLLSCAN"})

	err := checkNotCollscan(context.Background(), handle, "testdb", bson.D{{Key: "explain", Value: bson.D{}}})
	if !mcperrors.Is(err, mcperrors.KindForbiddenCollscan) {
		t.Fatalf("expected ForbiddenCollscan, got %v", err)
	}
}

func TestCheckNotCollscanFindsNestedCollscan(t *testing.T) {
	handle := driver.NewFakeHandle()
	handle.Explains["testdb"] = explainRaw(t, bson.M{
		"stage":      "FETCH",
		"inputStage": bson.M{"stage": "COLLSCAN"},
	})

	err := checkNotCollscan(context.Background(), handle, "testdb", bson.D{{Key: "explain", Value: bson.D{}}})
	if !mcperrors.Is(err, mcperrors.KindForbiddenCollscan) {
		t.Fatalf("expected ForbiddenCollscan for a nested collscan, got %v", err)
	}
}
