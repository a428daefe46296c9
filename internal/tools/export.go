package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/exports"
)

func exportTools() []Tool {
	return []Tool{
		exportQueryResultTool(),
	}
}

// exportsCreator is the narrow slice of *exports.Manager the export tool
// needs. Session stores its exports manager as a bare Closer to avoid a
// session -> exports import cycle, so the tool recovers the richer
// interface with a type assertion.
type exportsCreator interface {
	CreateJSONExport(ctx context.Context, in exports.CreateJSONExportInput) (exports.CreateJSONExportResult, error)
}

type exportQueryResultArgs struct {
	Database    string `bson:"database"`
	Collection  string `bson:"collection"`
	Filter      bson.D `bson:"filter"`
	ExportName  string `bson:"exportName"`
	ExportTitle string `bson:"exportTitle"`
	Format      string `bson:"format"`
}

func exportQueryResultTool() Tool {
	return newTool("export-query-result", CategoryMongoDB, OpRead, "Stream a query's results to a JSON export file",
		objectSchema(map[string]*jsonschema.Schema{
			"database":    stringProp("Database name"),
			"collection":  stringProp("Collection name"),
			"filter":      extJSONProp("Query filter"),
			"exportName":  stringProp("File name for the export"),
			"exportTitle": stringProp("Human-readable title for the export"),
			"format":      stringProp("relaxed or canonical extended JSON"),
		}, "database", "collection", "exportName"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args exportQueryResultArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode export-query-result arguments: %w", err)
			}
			handle, err := ensureConnected(ctx, rc)
			if err != nil {
				return Result{}, err
			}
			creator, ok := rc.Session.Exports.(exportsCreator)
			if !ok {
				return Result{}, fmt.Errorf("session exports manager does not support creating exports")
			}

			cur, err := handle.Find(ctx, args.Database, args.Collection, args.Filter, driver.FindOptions{})
			if err != nil {
				return Result{}, err
			}

			format := exports.FormatRelaxed
			if args.Format == string(exports.FormatCanonical) {
				format = exports.FormatCanonical
			}

			result, err := creator.CreateJSONExport(ctx, exports.CreateJSONExportInput{
				Cursor:      cur,
				ExportName:  args.ExportName,
				ExportTitle: args.ExportTitle,
				Format:      format,
			})
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("export started: %s", result.ExportURI)}, nil
		})
}
