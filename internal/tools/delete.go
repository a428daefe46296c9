package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"go.mongodb.org/mongo-driver/bson"
)

func deleteTools() []Tool {
	return []Tool{
		deleteManyTool(),
		dropCollectionTool(),
		dropDatabaseTool(),
	}
}

type deleteManyArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	Filter     bson.D `bson:"filter"`
}

func deleteManyTool() Tool {
	return newTool("delete-many", CategoryMongoDB, OpDelete, "Delete documents matching a filter",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"filter":     extJSONProp("Query filter"),
		}, "database", "collection", "filter"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args deleteManyArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode delete-many arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			if rc.Config.IndexCheck {
				cmd := bson.D{{Key: "delete", Value: args.Collection}, {Key: "deletes", Value: bson.A{bson.D{{Key: "q", Value: args.Filter}, {Key: "limit", Value: 0}}}}}
				if err := checkNotCollscan(ctx, handle, args.Database, cmd); err != nil {
					return Result{}, err
				}
			}
			res, err := handle.DeleteMany(ctx, args.Database, args.Collection, args.Filter)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("deleted %d document(s)", res.DeletedCount)}, nil
		})
}

func dropCollectionTool() Tool {
	return newTool("drop-collection", CategoryMongoDB, OpDelete, "Drop a collection",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
		}, "database", "collection"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args collectionArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode drop-collection arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			if err := handle.DropCollection(ctx, args.Database, args.Collection); err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("dropped collection %s.%s", args.Database, args.Collection)}, nil
		})
}

func dropDatabaseTool() Tool {
	return newTool("drop-database", CategoryMongoDB, OpDelete, "Drop an entire database",
		objectSchema(map[string]*jsonschema.Schema{
			"database": stringProp("Database name"),
		}, "database"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				Database string `bson:"database"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode drop-database arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			if err := handle.DropDatabase(ctx, args.Database); err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("dropped database %s", args.Database)}, nil
		})
}
