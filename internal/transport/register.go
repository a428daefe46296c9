// Package transport wires the tool registry and dispatcher onto the
// official MCP Go SDK server, and provides the two concrete transports
// (stdio, streamable HTTP) the server can run under.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/config"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/logging"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/session"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/tools"
)

// Identity names the server for MCP initialize responses.
type Identity struct {
	Name    string
	Version string
}

// NewMCPServer builds an *mcp.Server with every tool in registry
// registered against dispatcher, one handler per tool name. cfg and
// sess are shared across every call on this server (stdio has exactly
// one session; the HTTP transport holds one server per MCP session, see
// httpx.SessionStore).
//
// onSessionActive, when non-nil, is called with the live *mcp.ServerSession
// on every tool invocation, letting a caller (the HTTP transport's
// keep-alive loop) capture a handle to ping without the SDK exposing a
// session-accepted hook of its own.
func NewMCPServer(identity Identity, cfg *config.Config, registry *tools.Registry, dispatcher *tools.Dispatcher, sess *session.Session, mcpSink *logging.McpSink, onSessionActive func(*mcp.ServerSession)) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    identity.Name,
		Version: identity.Version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasResources: true,
	})

	for _, t := range registry.List() {
		registerTool(server, t, cfg, dispatcher, sess, mcpSink, onSessionActive)
	}

	return server
}

// registerTool wires one tools.Tool onto server: builds the MCP tool
// definition from its schema/annotations, and a handler that attaches
// the live server session (for elicitation and MCP log forwarding)
// before delegating to the dispatcher.
func registerTool(server *mcp.Server, t tools.Tool, cfg *config.Config, dispatcher *tools.Dispatcher, sess *session.Session, mcpSink *logging.McpSink, onSessionActive func(*mcp.ServerSession)) {
	mcpTool := &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
		Annotations: &mcp.ToolAnnotations{
			Title:           t.Annotations.Title,
			ReadOnlyHint:    t.Annotations.ReadOnlyHint,
			DestructiveHint: t.Annotations.DestructiveHint,
		},
	}

	handler := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if mcpSink != nil {
			mcpSink.SetSession(req.Session)
		}
		if onSessionActive != nil {
			onSessionActive(req.Session)
		}

		rawArgs, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return nil, fmt.Errorf("re-marshal tool arguments: %w", err)
		}

		result, err := dispatcher.Invoke(ctx, &tools.RequestContext{
			Session:                   sess,
			Config:                    cfg,
			Elicit:                    elicitFunc(req.Session),
			ClientSupportsElicitation: clientSupportsElicitation(req.Session),
		}, t.Name, rawArgs)
		if err != nil {
			return nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result.Text}},
			IsError: result.IsError,
		}, nil
	}

	server.AddTool(mcpTool, handler)
}

// serverSession is the subset of *mcp.ServerSession the dispatcher
// elicitation path needs, narrowed so it can be faked in tests without a
// live transport.
type serverSession interface {
	Elicit(ctx context.Context, params *mcp.ElicitParams) (*mcp.ElicitResult, error)
	InitializeParams() *mcp.InitializeParams
}

func elicitFunc(ss serverSession) tools.ElicitFunc {
	return func(ctx context.Context, message string) (bool, error) {
		result, err := ss.Elicit(ctx, &mcp.ElicitParams{
			Message: message,
			RequestedSchema: &mcp.ElicitRequestedSchema{
				Type: "object",
				Properties: map[string]*mcp.ElicitRequestedSchemaProperty{
					"confirm": {Type: "boolean"},
				},
			},
		})
		if err != nil {
			return false, err
		}
		return result.Action == "accept", nil
	}
}

func clientSupportsElicitation(ss serverSession) bool {
	if ss == nil {
		return false
	}
	params := ss.InitializeParams()
	return params != nil && params.Capabilities != nil && params.Capabilities.Elicitation != nil
}
