package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
)

func readTools() []Tool {
	return []Tool{
		findTool(),
		aggregateTool(),
		countTool(),
		collectionSchemaTool(),
		collectionIndexesTool(),
		collectionStorageSizeTool(),
		dbStatsTool(),
		listDatabasesTool(),
		listCollectionsTool(),
		explainTool(),
	}
}

type findArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	Filter     bson.D `bson:"filter"`
	Sort       bson.D `bson:"sort"`
	Limit      int64  `bson:"limit"`
	Skip       int64  `bson:"skip"`
}

func findTool() Tool {
	return newTool("find", CategoryMongoDB, OpRead, "Run a find query against a collection",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"filter":     extJSONProp("Query filter"),
			"sort":       extJSONProp("Sort specification"),
			"limit":      intProp("Maximum number of documents to return"),
			"skip":       intProp("Number of documents to skip"),
		}, "database", "collection"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args findArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode find arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			if rc.Config.IndexCheck {
				cmd := bson.D{{Key: "find", Value: args.Collection}, {Key: "filter", Value: args.Filter}}
				if err := checkNotCollscan(ctx, handle, args.Database, cmd); err != nil {
					return Result{}, err
				}
			}
			cur, err := handle.Find(ctx, args.Database, args.Collection, args.Filter, driver.FindOptions{Limit: args.Limit, Skip: args.Skip, Sort: args.Sort})
			if err != nil {
				return Result{}, err
			}
			defer cur.Close(ctx)

			var docs []bson.D
			for cur.Next(ctx) {
				var doc bson.D
				if err := cur.Decode(&doc); err != nil {
					return Result{}, fmt.Errorf("decode document: %w", err)
				}
				docs = append(docs, doc)
			}
			if err := cur.Err(); err != nil {
				return Result{}, err
			}
			rendered, err := driver.ToRelaxedExtJSON(docs)
			if err != nil {
				return Result{}, err
			}
			header := fmt.Sprintf("Found %d documents in \"%s.%s\":", len(docs), args.Database, args.Collection)
			return Result{Text: header + "\n" + wrapUntrustedData(rendered)}, nil
		})
}

type aggregateArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	Pipeline   bson.A `bson:"pipeline"`
}

func aggregateTool() Tool {
	return newTool("aggregate", CategoryMongoDB, OpRead, "Run an aggregation pipeline against a collection",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"pipeline":   extJSONProp("Aggregation pipeline stages"),
		}, "database", "collection", "pipeline"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args aggregateArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode aggregate arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			cur, err := handle.Aggregate(ctx, args.Database, args.Collection, args.Pipeline)
			if err != nil {
				return Result{}, err
			}
			defer cur.Close(ctx)

			var docs []bson.D
			for cur.Next(ctx) {
				var doc bson.D
				if err := cur.Decode(&doc); err != nil {
					return Result{}, fmt.Errorf("decode document: %w", err)
				}
				docs = append(docs, doc)
			}
			if err := cur.Err(); err != nil {
				return Result{}, err
			}
			rendered, err := driver.ToRelaxedExtJSON(docs)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

type countArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	Filter     bson.D `bson:"filter"`
}

func countTool() Tool {
	return newTool("count", CategoryMongoDB, OpRead, "Count documents matching a filter",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"filter":     extJSONProp("Query filter"),
		}, "database", "collection"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args countArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode count arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			cmd := bson.D{{Key: "count", Value: args.Collection}, {Key: "query", Value: args.Filter}}
			raw, err := handle.RunCommand(ctx, args.Database, cmd)
			if err != nil {
				return Result{}, err
			}
			var out struct {
				N int64 `bson:"n"`
			}
			if err := bson.Unmarshal(raw, &out); err != nil {
				return Result{}, fmt.Errorf("decode count response: %w", err)
			}
			return Result{Text: fmt.Sprintf("%d", out.N)}, nil
		})
}

type collectionArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
}

func collectionSchemaTool() Tool {
	return newTool("collection-schema", CategoryMongoDB, OpMeta, "Infer a collection's schema by sampling documents",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
		}, "database", "collection"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args collectionArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode collection-schema arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			cur, err := handle.Find(ctx, args.Database, args.Collection, bson.D{}, driver.FindOptions{Limit: 100})
			if err != nil {
				return Result{}, err
			}
			defer cur.Close(ctx)

			fieldTypes := map[string]map[string]bool{}
			for cur.Next(ctx) {
				var doc bson.D
				if err := cur.Decode(&doc); err != nil {
					return Result{}, fmt.Errorf("decode document: %w", err)
				}
				for _, elem := range doc {
					if fieldTypes[elem.Key] == nil {
						fieldTypes[elem.Key] = map[string]bool{}
					}
					fieldTypes[elem.Key][bsonTypeName(elem.Value)] = true
				}
			}
			if err := cur.Err(); err != nil {
				return Result{}, err
			}

			schema := bson.M{}
			for field, types := range fieldTypes {
				names := make([]string, 0, len(types))
				for t := range types {
					names = append(names, t)
				}
				schema[field] = names
			}
			rendered, err := driver.ToRelaxedExtJSON(schema)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int32, int64, int:
		return "int"
	case float64:
		return "double"
	case bool:
		return "bool"
	case bson.D, bson.M:
		return "object"
	case bson.A:
		return "array"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func collectionIndexesTool() Tool {
	return newTool("collection-indexes", CategoryMongoDB, OpMeta, "List a collection's indexes",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
		}, "database", "collection"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args collectionArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode collection-indexes arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			indexes, err := handle.ListIndexes(ctx, args.Database, args.Collection)
			if err != nil {
				return Result{}, err
			}
			rendered, err := driver.ToRelaxedExtJSON(indexes)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

func collectionStorageSizeTool() Tool {
	return newTool("collection-storage-size", CategoryMongoDB, OpMeta, "Report a collection's on-disk storage size",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
		}, "database", "collection"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args collectionArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode collection-storage-size arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			raw, err := handle.RunCommand(ctx, args.Database, bson.D{{Key: "collStats", Value: args.Collection}})
			if err != nil {
				return Result{}, err
			}
			var stats struct {
				Size        int64 `bson:"size"`
				StorageSize int64 `bson:"storageSize"`
			}
			if err := bson.Unmarshal(raw, &stats); err != nil {
				return Result{}, fmt.Errorf("decode collStats response: %w", err)
			}
			return Result{Text: fmt.Sprintf("storageSize=%d logicalSize=%d", stats.StorageSize, stats.Size)}, nil
		})
}

func dbStatsTool() Tool {
	return newTool("db-stats", CategoryMongoDB, OpMeta, "Report database-level statistics",
		objectSchema(map[string]*jsonschema.Schema{
			"database": stringProp("Database name"),
		}, "database"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				Database string `bson:"database"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode db-stats arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			raw, err := handle.RunCommand(ctx, args.Database, bson.D{{Key: "dbStats", Value: 1}})
			if err != nil {
				return Result{}, err
			}
			rendered, err := driver.ToRelaxedExtJSON(raw)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

func listDatabasesTool() Tool {
	return newTool("list-databases", CategoryMongoDB, OpMeta, "List databases on the connected deployment",
		objectSchema(map[string]*jsonschema.Schema{}),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			dbs, err := handle.ListDatabases(ctx)
			if err != nil {
				return Result{}, err
			}
			rendered, err := driver.ToRelaxedExtJSON(dbs)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

func listCollectionsTool() Tool {
	return newTool("list-collections", CategoryMongoDB, OpMeta, "List collections in a database",
		objectSchema(map[string]*jsonschema.Schema{
			"database": stringProp("Database name"),
		}, "database"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args struct {
				Database string `bson:"database"`
			}
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode list-collections arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			cols, err := handle.ListCollections(ctx, args.Database)
			if err != nil {
				return Result{}, err
			}
			rendered, err := driver.ToRelaxedExtJSON(cols)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}

type explainArgs struct {
	Database   string `bson:"database"`
	Collection string `bson:"collection"`
	Filter     bson.D `bson:"filter"`
}

func explainTool() Tool {
	return newTool("explain", CategoryMongoDB, OpRead, "Explain a find's query plan",
		objectSchema(map[string]*jsonschema.Schema{
			"database":   stringProp("Database name"),
			"collection": stringProp("Collection name"),
			"filter":     extJSONProp("Query filter"),
		}, "database", "collection"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args explainArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode explain arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			cmd := bson.D{{Key: "find", Value: args.Collection}, {Key: "filter", Value: args.Filter}}
			raw, err := handle.Explain(ctx, args.Database, cmd)
			if err != nil {
				return Result{}, err
			}
			rendered, err := driver.ToRelaxedExtJSON(raw)
			if err != nil {
				return Result{}, err
			}
			return Result{Text: wrapUntrustedData(rendered)}, nil
		})
}
