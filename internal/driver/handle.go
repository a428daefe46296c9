// Package driver narrows go.mongodb.org/mongo-driver down to the
// operations the connection manager and tool bodies need, so the rest of
// the server never imports the driver package directly and can be tested
// against a fake.
package driver

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Handle is a live connection to a mongod/mongos or an Atlas cluster.
// Every method maps onto exactly one driver call; Handle does no
// buffering, retrying, or interpretation of its own.
type Handle interface {
	// Ping runs a lightweight admin command ("ping") to confirm
	// liveness. Used both for the synchronous connect path and for the
	// OIDC fire-and-forget probe.
	Ping(ctx context.Context) error

	RunCommand(ctx context.Context, database string, command bson.D) (bson.Raw, error)

	Find(ctx context.Context, database, collection string, filter bson.D, opts FindOptions) (Cursor, error)
	Aggregate(ctx context.Context, database, collection string, pipeline bson.A) (Cursor, error)

	InsertMany(ctx context.Context, database, collection string, documents []bson.D) (InsertManyResult, error)
	UpdateMany(ctx context.Context, database, collection string, filter, update bson.D, upsert bool) (UpdateResult, error)
	DeleteMany(ctx context.Context, database, collection string, filter bson.D) (DeleteResult, error)

	CreateIndex(ctx context.Context, database, collection string, keys bson.D, opts IndexOptions) (string, error)
	ListIndexes(ctx context.Context, database, collection string) ([]IndexInfo, error)

	ListDatabases(ctx context.Context) ([]DatabaseInfo, error)
	ListCollections(ctx context.Context, database string) ([]CollectionInfo, error)

	DropCollection(ctx context.Context, database, collection string) error
	DropDatabase(ctx context.Context, database string) error

	// Explain runs the given command wrapped in explain, used by the
	// index-check gate to detect full collection scans before executing
	// a query for real.
	Explain(ctx context.Context, database string, command bson.D) (bson.Raw, error)

	Close(ctx context.Context) error
}

// Cursor iterates query/aggregation results without requiring the caller
// to know which driver type produced them.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(out any) error
	Err() error
	Close(ctx context.Context) error
}

// FindOptions mirrors the subset of driver find options the tool layer
// exposes to the agent.
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  bson.D
}

// IndexOptions mirrors the subset of driver index options exposed.
type IndexOptions struct {
	Name   string
	Unique bool
}

type InsertManyResult struct {
	InsertedIDs []any
}

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    any
}

type DeleteResult struct {
	DeletedCount int64
}

type DatabaseInfo struct {
	Name       string
	SizeOnDisk int64
}

type CollectionInfo struct {
	Name string
	Type string
}

type IndexInfo struct {
	Name string
	Keys bson.D
}
