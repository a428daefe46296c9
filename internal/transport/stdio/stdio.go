// Package stdio runs the MCP server over newline-delimited JSON-RPC on
// stdin/stdout: one Session, one driver Connection, for the lifetime of
// the process.
package stdio

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/session"
)

const closeTimeout = 10 * time.Second

// Run serves server over stdio until the context is canceled or a
// shutdown signal arrives, then closes sess and returns. The caller maps
// a non-nil return into a process exit code.
func Run(ctx context.Context, server *mcp.Server, sess *session.Session) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT)
	defer stop()

	runErr := server.Run(ctx, &mcp.StdioTransport{})

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := sess.Close(closeCtx); err != nil {
		if runErr != nil {
			return fmt.Errorf("run stdio transport: %w (also failed to close session: %v)", runErr, err)
		}
		return fmt.Errorf("close session: %w", err)
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run stdio transport: %w", runErr)
	}
	return nil
}
