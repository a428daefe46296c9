package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"go.mongodb.org/mongo-driver/bson"
)

func updateTools() []Tool {
	return []Tool{
		updateManyTool(),
		renameCollectionTool(),
	}
}

type updateManyArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	Filter     bson.D `bson:"filter"`
	Update     bson.D `bson:"update"`
	Upsert     bool   `bson:"upsert"`
}

func updateManyTool() Tool {
	return newTool("update-many", CategoryMongoDB, OpUpdate, "Update documents matching a filter",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"filter":     extJSONProp("Query filter"),
			"update":     extJSONProp("Update document"),
			"upsert":     boolProp("Insert a new document if no document matches the filter"),
		}, "database", "collection", "filter", "update"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args updateManyArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode update-many arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			if rc.Config.IndexCheck {
				cmd := bson.D{{Key: "update", Value: args.Collection}, {Key: "updates", Value: bson.A{bson.D{{Key: "q", Value: args.Filter}, {Key: "u", Value: args.Update}}}}}
				if err := checkNotCollscan(ctx, handle, args.Database, cmd); err != nil {
					return Result{}, err
				}
			}
			res, err := handle.UpdateMany(ctx, args.Database, args.Collection, args.Filter, args.Update, args.Upsert)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("matched %d, modified %d", res.MatchedCount, res.ModifiedCount)}, nil
		})
}

type renameCollectionArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	NewName    string `bson:"newName"`
	DropTarget bool   `bson:"dropTarget"`
}

// renameCollectionTool runs the admin-database renameCollection command
// directly, since a rename is a single admin command rather than an
// operation the narrowed Handle interface needs a dedicated method for.
func renameCollectionTool() Tool {
	return newTool("rename-collection", CategoryMongoDB, OpUpdate, "Rename a collection in place",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Current collection name"),
			"newName":    stringProp("New collection name"),
			"dropTarget": boolProp("Drop the target collection first if it already exists"),
		}, "database", "collection", "newName"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args renameCollectionArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode rename-collection arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			cmd := bson.D{
				{Key: "renameCollection", Value: fmt.Sprintf("%s.%s", args.Database, args.Collection)},
				{Key: "to", Value: fmt.Sprintf("%s.%s", args.Database, args.NewName)},
				{Key: "dropTarget", Value: args.DropTarget},
			}
			if _, err := handle.RunCommand(ctx, "admin", cmd); err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("renamed %s.%s to %s.%s", args.Database, args.Collection, args.Database, args.NewName)}, nil
		})
}
