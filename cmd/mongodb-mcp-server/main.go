// Command mongodb-mcp-server runs the MCP server exposing MongoDB (and
// Atlas) as a typed tool surface to an MCP-speaking agent, over stdio or
// streamable HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/atlas"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/config"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/exports"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/health"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/keychain"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/logging"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/oidc"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/session"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/telemetry"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/tools"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/transport"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/transport/httpx"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/transport/stdio"
)

// Version information, set via ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mongodb-mcp-server [connection-string]",
	Short: "MongoDB MCP Server",
	Long:  "An MCP server exposing MongoDB and Atlas as a typed tool surface to an AI agent",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to config file")
	flags.Bool("version", false, "Print version information and exit")
	flags.Int("healthPort", 0, "port for the operator /healthz and /status endpoints, 0 disables")

	config.RegisterFlags(flags)
	config.BindFlags(flags)
}

func run(cmd *cobra.Command, args []string) error {
	versionFlag, _ := cmd.Flags().GetBool("version")
	if versionFlag {
		fmt.Printf("mongodb-mcp-server version %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		return nil
	}

	if len(args) == 1 {
		if !strings.HasPrefix(args[0], "mongodb://") && !strings.HasPrefix(args[0], "mongodb+srv://") {
			return suggestUnknownArg(cmd, args[0])
		}
		config.SetPositionalConnectionString(args[0])
	}

	cfg, err := config.LoadWithConfigFile(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	kc := keychain.New()
	kc.RegisterMany([]string{cfg.Username}, keychain.KindUser)
	kc.RegisterMany([]string{cfg.Password, cfg.APIClientSecret}, keychain.KindPassword)
	kc.RegisterMany([]string{cfg.ConnectionString}, keychain.KindURL)

	redactor := logging.NewRedactor(kc)
	logger, mcpSink, err := buildLogger(cfg, redactor)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Close()

	logger.Info("starting mongodb-mcp-server version=%s transport=%s", Version, cfg.Transport)

	healthPort, _ := cmd.Flags().GetInt("healthPort")

	deviceIDResolver := telemetry.NewDeviceIDResolver(3 * time.Second)
	telemetryEmitter := telemetry.New(telemetry.Config{
		Disabled: cfg.Telemetry == "disabled",
		Endpoint: "https://mongodb-mcp-server.mongodb.com/api/telemetry",
		Tokens:   atlasTokenSource(cfg),
		Logf:     logger.Info,
	})
	defer telemetryEmitter.Close()

	registry := tools.NewRegistry(cfg, tools.Candidates())
	dispatcher := tools.NewDispatcher(registry, telemetryEmitter)
	identity := transport.Identity{Name: "mongodb-mcp-server", Version: Version}

	deviceID := ""
	connIdentityCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if deviceIDResolver.Ready() {
		deviceID = deviceIDResolver.Get(connIdentityCtx)
	}
	cancel()

	ctx := context.Background()

	switch cfg.Transport {
	case "stdio":
		return runStdio(ctx, cfg, kc, logger, mcpSink, registry, dispatcher, identity, deviceID, telemetryEmitter, healthPort)
	case "http":
		return runHTTP(ctx, cfg, kc, redactor, registry, dispatcher, identity, deviceID, telemetryEmitter, healthPort)
	default:
		return fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

func runStdio(ctx context.Context, cfg *config.Config, kc *keychain.Keychain, logger *logging.Logger, mcpSink *logging.McpSink, registry *tools.Registry, dispatcher *tools.Dispatcher, identity transport.Identity, deviceID string, telemetryEmitter *telemetry.Emitter, healthPort int) error {
	connMgr := newConnectionManager(cfg, logger, identity, deviceID)
	exportsMgr, err := newExportsManager(cfg, logger)
	if err != nil {
		return err
	}
	atlasClient := newAtlasClient(cfg)
	sess := session.New(kc, logger, connMgr, atlasClient, exportsMgr)

	if healthPort > 0 {
		go func() {
			hs := health.NewServer(connMgr, exportsMgr, telemetryEmitter, healthPort)
			if err := hs.Start(); err != nil {
				logger.Error("health server stopped: %v", err)
			}
		}()
	}

	server := transport.NewMCPServer(identity, cfg, registry, dispatcher, sess, mcpSink, nil)
	return stdio.Run(ctx, server, sess)
}

func runHTTP(ctx context.Context, cfg *config.Config, kc *keychain.Keychain, redactor *logging.Redactor, registry *tools.Registry, dispatcher *tools.Dispatcher, identity transport.Identity, deviceID string, telemetryEmitter *telemetry.Emitter, healthPort int) error {
	idleTimeout := time.Duration(cfg.IdleTimeoutMS) * time.Millisecond
	notifyTimeout := time.Duration(cfg.NotificationTimeoutMS) * time.Millisecond

	builder := func(id string, onActive func(*mcp.ServerSession)) (*mcp.Server, *session.Session, *logging.Logger, error) {
		sessionLogger, mcpSink, err := buildLogger(cfg, redactor)
		if err != nil {
			return nil, nil, nil, err
		}
		sessionLogger = sessionLogger.With("httpSession:" + id)

		connMgr := newConnectionManager(cfg, sessionLogger, identity, deviceID)
		exportsMgr, err := newExportsManager(cfg, sessionLogger)
		if err != nil {
			return nil, nil, nil, err
		}
		atlasClient := newAtlasClient(cfg)
		sess := session.New(kc, sessionLogger, connMgr, atlasClient, exportsMgr)

		server := transport.NewMCPServer(identity, cfg, registry, dispatcher, sess, mcpSink, onActive)
		return server, sess, sessionLogger, nil
	}

	store := httpx.NewSessionStore(idleTimeout, notifyTimeout, builder)
	handler := &httpx.Handler{Store: store, RequiredHeaders: httpHeadersFromConfig(cfg)}

	if healthPort > 0 {
		go func() {
			hs := health.NewServer(noopConnProvider{}, noopExportsProvider{}, telemetryEmitter, healthPort)
			_ = hs.Start()
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	return httpx.Run(ctx, addr, handler)
}

func buildLogger(cfg *config.Config, redactor *logging.Redactor) (*logging.Logger, *logging.McpSink, error) {
	var sinks []logging.Sink
	var mcpSink *logging.McpSink

	for _, name := range cfg.Loggers {
		switch name {
		case "stderr":
			sinks = append(sinks, logging.NewConsoleSink(os.Stderr, slog.LevelInfo))
		case "disk":
			dir := cfg.LogPath
			if dir == "" {
				dir = filepath.Join(os.TempDir(), "mongodb-mcp-server-logs")
			}
			sink, err := logging.NewDiskSink(dir, slog.LevelInfo)
			if err != nil {
				return nil, nil, fmt.Errorf("create disk log sink: %w", err)
			}
			sinks = append(sinks, sink)
		case "mcp":
			mcpSink = logging.NewMcpSink()
			sinks = append(sinks, mcpSink)
		}
	}

	return logging.New(redactor, sinks...), mcpSink, nil
}

// newConnectionManager builds the session's connection manager. The dial
// closure captures mgr by forward reference so the OIDC device-flow
// prompt (known only once the driver calls back into it mid-dial) can be
// recorded on the very manager that's dialing, surfacing it to the agent
// through ensureConnected instead of only logging it server-side.
func newConnectionManager(cfg *config.Config, logger *logging.Logger, identity transport.Identity, deviceID string) *connection.Manager {
	var mgr *connection.Manager
	dial := func(ctx context.Context, uri string) (driver.Handle, error) {
		if !driver.InferAuthType(uri, cfg.Browser).IsOIDC() {
			return driver.Connect(ctx, uri)
		}
		opts := driver.HumanOIDCOptions(cfg.Browser, openBrowser, func(p oidc.DeviceFlowPrompt) {
			logger.Info("visit %s and enter code %s to finish connecting", p.VerificationURI, p.UserCode)
			mgr.SetOIDCPrompt(p.VerificationURI, p.UserCode)
		})
		return driver.Connect(ctx, uri, opts)
	}
	mgr = connection.New(dial, connection.Identity{
		ServerName:    identity.Name,
		ServerVersion: identity.Version,
		DeviceID:      deviceID,
		ClientName:    "mongodb-mcp-server",
	}, connection.WithLogger(logger), connection.WithBrowserAvailable(cfg.Browser))
	return mgr
}

func newExportsManager(cfg *config.Config, logger *logging.Logger) (*exports.Manager, error) {
	if err := os.MkdirAll(cfg.ExportsPath, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}

	opts := []exports.Option{
		exports.WithTTL(time.Duration(cfg.ExportTTLMS) * time.Millisecond),
		exports.WithLogger(logger),
	}

	registry, err := newExportRegistry(cfg)
	if err != nil {
		return nil, err
	}
	if registry != nil {
		opts = append(opts, exports.WithRegistry(registry))
	}

	if cfg.AzureStorageConnectionString != "" && cfg.AzureStorageContainer != "" {
		archiver, err := exports.NewAzureArchiver(exports.AzureArchiverConfig{
			ConnectionString: cfg.AzureStorageConnectionString,
			Container:        cfg.AzureStorageContainer,
		})
		if err != nil {
			return nil, fmt.Errorf("create azure archiver: %w", err)
		}
		opts = append(opts, exports.WithArchiver(archiver))
	}

	return exports.NewManager(cfg.ExportsPath, opts...), nil
}

func newExportRegistry(cfg *config.Config) (exports.Registry, error) {
	switch cfg.RegistryDriver {
	case "":
		return nil, nil
	case "sqlite":
		return exports.NewSQLiteRegistry(exports.DefaultSQLiteRegistryConfig(cfg.RegistryDSN))
	case "postgres":
		return exports.NewPostgresRegistry(context.Background(), exports.PostgresRegistryConfig{ConnectionString: cfg.RegistryDSN})
	default:
		return nil, fmt.Errorf("unknown registryDriver %q, must be sqlite or postgres", cfg.RegistryDriver)
	}
}

func newAtlasClient(cfg *config.Config) atlas.Client {
	if cfg.APIClientID == "" || cfg.APIClientSecret == "" {
		return nil
	}
	return atlas.NewClient(cfg.APIBaseURL, cfg.APIClientID, cfg.APIClientSecret, "https://cloud.mongodb.com/api/oauth/token")
}

func atlasTokenSource(cfg *config.Config) telemetry.TokenSource {
	if cfg.APIClientID == "" || cfg.APIClientSecret == "" {
		return nil
	}
	return atlas.NewTelemetryTokenSource(cfg.APIClientID, cfg.APIClientSecret, "https://cloud.mongodb.com/api/oauth/token")
}

// httpHeadersFromConfig reads the operator-set required-header list from
// the MDB_MCP_HTTP_HEADERS passthrough surface, formatted as
// "Name:Value,Name:Value". There's no dedicated config field for this
// because the rest of the MDB_MCP_* surface is scalar-typed; a header
// map doesn't fit that shape, so it rides the free-form Extra passthrough
// instead.
func httpHeadersFromConfig(cfg *config.Config) map[string]string {
	raw, ok := cfg.Extra["http_headers"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return nil
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		name, value, found := strings.Cut(pair, ":")
		if !found {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

// suggestUnknownArg rejects a positional argument that isn't a MongoDB
// connection string, suggesting the nearest known flag if it looks like
// a mistyped one.
func suggestUnknownArg(cmd *cobra.Command, arg string) error {
	if !strings.HasPrefix(arg, "-") {
		return fmt.Errorf("positional argument %q is not a MongoDB connection string (must start with mongodb:// or mongodb+srv://)", arg)
	}

	name := strings.TrimLeft(arg, "-")
	if msg, ok := config.SuggestForUnknownFlag(name, cmd.Flags()); ok {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("unknown flag %q", arg)
}

// openBrowser launches the OS default browser at url, for the OIDC
// auth-code flow's human-verification step.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

type noopConnProvider struct{}

func (noopConnProvider) CurrentState() connection.ConnectionState {
	return connection.ConnectionState{State: connection.StateDisconnected}
}

type noopExportsProvider struct{}

func (noopExportsProvider) List() []exports.Job { return nil }
