package driver

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHandle adapts *mongo.Client to Handle.
type MongoHandle struct {
	client *mongo.Client
}

// Connect dials uri and returns a Handle once the driver reports it is
// reachable. The caller (ConnectionManager) is responsible for the
// synchronous-vs-async hello distinction described for OIDC flows; this
// function only performs the driver-level connect.
func Connect(ctx context.Context, uri string, opts ...*options.ClientOptions) (*MongoHandle, error) {
	clientOpts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, opts...)
	client, err := mongo.Connect(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &MongoHandle{client: client}, nil
}

func (h *MongoHandle) Ping(ctx context.Context) error {
	return h.client.Ping(ctx, nil)
}

func (h *MongoHandle) RunCommand(ctx context.Context, database string, command bson.D) (bson.Raw, error) {
	return h.client.Database(database).RunCommand(ctx, command).Raw()
}

func (h *MongoHandle) Find(ctx context.Context, database, collection string, filter bson.D, opts FindOptions) (Cursor, error) {
	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	cur, err := h.client.Database(database).Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return mongoCursor{cur}, nil
}

func (h *MongoHandle) Aggregate(ctx context.Context, database, collection string, pipeline bson.A) (Cursor, error) {
	cur, err := h.client.Database(database).Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return mongoCursor{cur}, nil
}

func (h *MongoHandle) InsertMany(ctx context.Context, database, collection string, documents []bson.D) (InsertManyResult, error) {
	docs := make([]any, len(documents))
	for i, d := range documents {
		docs[i] = d
	}
	res, err := h.client.Database(database).Collection(collection).InsertMany(ctx, docs)
	if err != nil {
		return InsertManyResult{}, fmt.Errorf("insert many: %w", err)
	}
	return InsertManyResult{InsertedIDs: res.InsertedIDs}, nil
}

func (h *MongoHandle) UpdateMany(ctx context.Context, database, collection string, filter, update bson.D, upsert bool) (UpdateResult, error) {
	updateOpts := options.Update().SetUpsert(upsert)
	res, err := h.client.Database(database).Collection(collection).UpdateMany(ctx, filter, update, updateOpts)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update many: %w", err)
	}
	return UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount, UpsertedID: res.UpsertedID}, nil
}

func (h *MongoHandle) DeleteMany(ctx context.Context, database, collection string, filter bson.D) (DeleteResult, error) {
	res, err := h.client.Database(database).Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete many: %w", err)
	}
	return DeleteResult{DeletedCount: res.DeletedCount}, nil
}

func (h *MongoHandle) CreateIndex(ctx context.Context, database, collection string, keys bson.D, opts IndexOptions) (string, error) {
	idxOpts := options.Index()
	if opts.Name != "" {
		idxOpts.SetName(opts.Name)
	}
	if opts.Unique {
		idxOpts.SetUnique(true)
	}
	model := mongo.IndexModel{Keys: keys, Options: idxOpts}
	name, err := h.client.Database(database).Collection(collection).Indexes().CreateOne(ctx, model)
	if err != nil {
		return "", fmt.Errorf("create index: %w", err)
	}
	return name, nil
}

func (h *MongoHandle) ListIndexes(ctx context.Context, database, collection string) ([]IndexInfo, error) {
	cur, err := h.client.Database(database).Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer cur.Close(ctx)

	var out []IndexInfo
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
			Key  bson.D `bson:"key"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode index info: %w", err)
		}
		out = append(out, IndexInfo{Name: doc.Name, Keys: doc.Key})
	}
	return out, cur.Err()
}

func (h *MongoHandle) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	result, err := h.client.ListDatabases(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	out := make([]DatabaseInfo, len(result.Databases))
	for i, d := range result.Databases {
		out[i] = DatabaseInfo{Name: d.Name, SizeOnDisk: d.SizeOnDisk}
	}
	return out, nil
}

func (h *MongoHandle) ListCollections(ctx context.Context, database string) ([]CollectionInfo, error) {
	cur, err := h.client.Database(database).ListCollections(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer cur.Close(ctx)

	var out []CollectionInfo
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
			Type string `bson:"type"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode collection info: %w", err)
		}
		out = append(out, CollectionInfo{Name: doc.Name, Type: doc.Type})
	}
	return out, cur.Err()
}

func (h *MongoHandle) DropCollection(ctx context.Context, database, collection string) error {
	if err := h.client.Database(database).Collection(collection).Drop(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

func (h *MongoHandle) DropDatabase(ctx context.Context, database string) error {
	if err := h.client.Database(database).Drop(ctx); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}

func (h *MongoHandle) Explain(ctx context.Context, database string, command bson.D) (bson.Raw, error) {
	explainCmd := bson.D{{Key: "explain", Value: command}}
	return h.RunCommand(ctx, database, explainCmd)
}

func (h *MongoHandle) Close(ctx context.Context) error {
	return h.client.Disconnect(ctx)
}

type mongoCursor struct {
	cur *mongo.Cursor
}

func (c mongoCursor) Next(ctx context.Context) bool   { return c.cur.Next(ctx) }
func (c mongoCursor) Decode(out any) error            { return c.cur.Decode(out) }
func (c mongoCursor) Err() error                      { return c.cur.Err() }
func (c mongoCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
