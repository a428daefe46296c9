package driver

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// FakeHandle is an in-memory Handle implementation for tests that don't
// need a live mongod. Only the operations exercised by a given test need
// to be wired through Docs; everything else returns ErrNotImplemented.
type FakeHandle struct {
	PingErr  error
	Docs     map[string][]bson.D // keyed by "database.collection"
	Explains map[string]bson.Raw
}

var ErrNotImplemented = errors.New("driver: operation not implemented by fake")

func NewFakeHandle() *FakeHandle {
	return &FakeHandle{Docs: map[string][]bson.D{}, Explains: map[string]bson.Raw{}}
}

func key(database, collection string) string { return database + "." + collection }

func (f *FakeHandle) Ping(ctx context.Context) error { return f.PingErr }

func (f *FakeHandle) RunCommand(ctx context.Context, database string, command bson.D) (bson.Raw, error) {
	return nil, ErrNotImplemented
}

func (f *FakeHandle) Find(ctx context.Context, database, collection string, filter bson.D, opts FindOptions) (Cursor, error) {
	docs := f.Docs[key(database, collection)]
	return &sliceCursor{docs: docs, idx: -1}, nil
}

func (f *FakeHandle) Aggregate(ctx context.Context, database, collection string, pipeline bson.A) (Cursor, error) {
	docs := f.Docs[key(database, collection)]
	return &sliceCursor{docs: docs, idx: -1}, nil
}

func (f *FakeHandle) InsertMany(ctx context.Context, database, collection string, documents []bson.D) (InsertManyResult, error) {
	k := key(database, collection)
	f.Docs[k] = append(f.Docs[k], documents...)
	ids := make([]any, len(documents))
	for i := range documents {
		ids[i] = i
	}
	return InsertManyResult{InsertedIDs: ids}, nil
}

func (f *FakeHandle) UpdateMany(ctx context.Context, database, collection string, filter, update bson.D, upsert bool) (UpdateResult, error) {
	return UpdateResult{}, ErrNotImplemented
}

func (f *FakeHandle) DeleteMany(ctx context.Context, database, collection string, filter bson.D) (DeleteResult, error) {
	k := key(database, collection)
	n := int64(len(f.Docs[k]))
	delete(f.Docs, k)
	return DeleteResult{DeletedCount: n}, nil
}

func (f *FakeHandle) CreateIndex(ctx context.Context, database, collection string, keys bson.D, opts IndexOptions) (string, error) {
	if opts.Name != "" {
		return opts.Name, nil
	}
	return "idx", nil
}

func (f *FakeHandle) ListIndexes(ctx context.Context, database, collection string) ([]IndexInfo, error) {
	return []IndexInfo{{Name: "_id_", Keys: bson.D{{Key: "_id", Value: 1}}}}, nil
}

func (f *FakeHandle) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	seen := map[string]bool{}
	var out []DatabaseInfo
	for k := range f.Docs {
		for i := 0; i < len(k); i++ {
			if k[i] == '.' {
				if db := k[:i]; !seen[db] {
					seen[db] = true
					out = append(out, DatabaseInfo{Name: db})
				}
				break
			}
		}
	}
	return out, nil
}

func (f *FakeHandle) ListCollections(ctx context.Context, database string) ([]CollectionInfo, error) {
	var out []CollectionInfo
	prefix := database + "."
	for k := range f.Docs {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, CollectionInfo{Name: k[len(prefix):], Type: "collection"})
		}
	}
	return out, nil
}

func (f *FakeHandle) DropCollection(ctx context.Context, database, collection string) error {
	delete(f.Docs, key(database, collection))
	return nil
}

func (f *FakeHandle) DropDatabase(ctx context.Context, database string) error {
	prefix := database + "."
	for k := range f.Docs {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(f.Docs, k)
		}
	}
	return nil
}

func (f *FakeHandle) Explain(ctx context.Context, database string, command bson.D) (bson.Raw, error) {
	if raw, ok := f.Explains[database]; ok {
		return raw, nil
	}
	return nil, ErrNotImplemented
}

func (f *FakeHandle) Close(ctx context.Context) error { return nil }

type sliceCursor struct {
	docs []bson.D
	idx  int
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	c.idx++
	return c.idx < len(c.docs)
}

func (c *sliceCursor) Decode(out any) error {
	if c.idx < 0 || c.idx >= len(c.docs) {
		return errors.New("driver: cursor not positioned on a document")
	}
	raw, err := bson.Marshal(c.docs[c.idx])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func (c *sliceCursor) Err() error                      { return nil }
func (c *sliceCursor) Close(ctx context.Context) error { return nil }
