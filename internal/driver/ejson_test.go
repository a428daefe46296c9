package driver

import (
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestRelaxedExtJSONKeepsPlainNumbers(t *testing.T) {
	doc := bson.D{{Key: "count", Value: int32(3)}}
	out, err := ToRelaxedExtJSON(doc)
	if err != nil {
		t.Fatalf("ToRelaxedExtJSON: %v", err)
	}
	if strings.Contains(out, "$numberInt") {
		t.Fatalf("expected relaxed extended JSON to render plain numbers, got %q", out)
	}
}

func TestCanonicalExtJSONWrapsNumbers(t *testing.T) {
	doc := bson.D{{Key: "count", Value: int32(3)}}
	out, err := ToCanonicalExtJSON(doc)
	if err != nil {
		t.Fatalf("ToCanonicalExtJSON: %v", err)
	}
	if !strings.Contains(out, "$numberInt") {
		t.Fatalf("expected canonical extended JSON to wrap int32, got %q", out)
	}
}

func TestFromExtJSONRoundTrip(t *testing.T) {
	in := []byte(`{"name": "widgets", "createdAt": {"$date": "2024-01-01T00:00:00Z"}}`)
	doc, err := FromExtJSON(in)
	if err != nil {
		t.Fatalf("FromExtJSON: %v", err)
	}
	if len(doc) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(doc))
	}
}

func TestArrayFromExtJSON(t *testing.T) {
	in := []byte(`[{"$match": {"status": "active"}}]`)
	arr, err := ArrayFromExtJSON(in)
	if err != nil {
		t.Fatalf("ArrayFromExtJSON: %v", err)
	}
	if len(arr) != 1 {
		t.Fatalf("expected 1 pipeline stage, got %d", len(arr))
	}
}
