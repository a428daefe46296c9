package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
)

func createTools() []Tool {
	return []Tool{
		insertManyTool(),
		createIndexTool(),
	}
}

type insertManyArgs struct {
	Database   string   `bson:"database"`
	Collection string   `bson:"collection"`
	Documents  []bson.D `bson:"documents"`
}

func insertManyTool() Tool {
	return newTool("insert-many", CategoryMongoDB, OpCreate, "Insert one or more documents into a collection",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"documents":  arrayProp("Documents to insert", extJSONProp("A document")),
		}, "database", "collection", "documents"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args insertManyArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode insert-many arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			res, err := handle.InsertMany(ctx, args.Database, args.Collection, args.Documents)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("inserted %d document(s)", len(res.InsertedIDs))}, nil
		})
}

type createIndexArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	Keys       bson.D `bson:"keys"`
	Name       string `bson:"name"`
	Unique     bool   `bson:"unique"`
}

func createIndexTool() Tool {
	return newTool("create-index", CategoryMongoDB, OpCreate, "Create an index on a collection",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"keys":       extJSONProp("Index key specification"),
			"name":       stringProp("Optional explicit index name"),
			"unique":     boolProp("Whether the index enforces uniqueness"),
		}, "database", "collection", "keys"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args createIndexArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode create-index arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			name, err := handle.CreateIndex(ctx, args.Database, args.Collection, args.Keys, driver.IndexOptions{Name: args.Name, Unique: args.Unique})
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("created index %q", name)}, nil
		})
}
