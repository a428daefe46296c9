package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
)

func connectTools() []Tool {
	return []Tool{
		connectTool(),
		listConnectionsTool(),
	}
}

type connectArgs struct {
	ConnectionString string `bson:"connectionString"`
}

func connectTool() Tool {
	return newTool("connect", CategoryMongoDB, OpConnect, "Connect to a MongoDB deployment by connection string",
		objectSchema(map[string]*jsonschema.Schema{
			"connectionString": stringProp("MongoDB connection string"),
		}, "connectionString"),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			var args connectArgs
			if err := decodeArgs(rawArgs, &args); err != nil {
				return Result{}, fmt.Errorf("decode connect arguments: %w", err)
			}
			connStr := args.ConnectionString
			if connStr == "" {
				connStr = rc.Config.ConnectionString
			}
			state, err := rc.Session.ConnectToMongoDB(ctx, connection.Settings{ConnectionString: connStr})
			if err != nil {
				return Result{}, err
			}
			return Result{Text: fmt.Sprintf("connected (authType=%s)", state.AuthType)}, nil
		})
}

func listConnectionsTool() Tool {
	return newTool("list-connections", CategoryMongoDB, OpMeta, "Report the current connection state for this session",
		objectSchema(map[string]*jsonschema.Schema{}),
		func(ctx context.Context, rc *RequestContext, rawArgs []byte) (Result, error) {
			state := rc.Session.Conn.CurrentState()
			text := fmt.Sprintf("state=%s authType=%s", state.State, state.AuthType)
			if state.Reason != "" {
				text += fmt.Sprintf(" reason=%q", state.Reason)
			}
			return Result{Text: text}, nil
		})
}
