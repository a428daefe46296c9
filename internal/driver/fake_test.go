package driver

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestFakeHandleInsertAndFind(t *testing.T) {
	h := NewFakeHandle()
	ctx := context.Background()

	_, err := h.InsertMany(ctx, "app", "widgets", []bson.D{{{Key: "name", Value: "bolt"}}})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	cur, err := h.Find(ctx, "app", "widgets", bson.D{}, FindOptions{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	defer cur.Close(ctx)

	var count int
	for cur.Next(ctx) {
		var doc bson.D
		if err := cur.Decode(&doc); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 document, got %d", count)
	}
}

func TestFakeHandleDeleteManyClearsCollection(t *testing.T) {
	h := NewFakeHandle()
	ctx := context.Background()
	h.InsertMany(ctx, "app", "widgets", []bson.D{{{Key: "n", Value: 1}}, {{Key: "n", Value: 2}}})

	res, err := h.DeleteMany(ctx, "app", "widgets", bson.D{})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if res.DeletedCount != 2 {
		t.Fatalf("expected 2 deleted, got %d", res.DeletedCount)
	}

	cur, _ := h.Find(ctx, "app", "widgets", bson.D{}, FindOptions{})
	if cur.Next(ctx) {
		t.Fatal("expected collection to be empty after delete")
	}
}

func TestFakeHandleListDatabasesAndCollections(t *testing.T) {
	h := NewFakeHandle()
	ctx := context.Background()
	h.InsertMany(ctx, "app", "widgets", []bson.D{{{Key: "n", Value: 1}}})
	h.InsertMany(ctx, "app", "orders", []bson.D{{{Key: "n", Value: 1}}})

	dbs, err := h.ListDatabases(ctx)
	if err != nil || len(dbs) != 1 || dbs[0].Name != "app" {
		t.Fatalf("expected single database 'app', got %+v err=%v", dbs, err)
	}

	cols, err := h.ListCollections(ctx, "app")
	if err != nil || len(cols) != 2 {
		t.Fatalf("expected 2 collections, got %+v err=%v", cols, err)
	}
}
