// Package health serves operator-facing /healthz and /status endpoints
// reporting connection state, export job counts, and telemetry breaker
// state, for deployments that run the server long enough to want a
// liveness probe.
package health

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/exports"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/telemetry"
)

// ConnectionStateProvider is the narrow view of connection.Manager the
// health endpoint needs.
type ConnectionStateProvider interface {
	CurrentState() connection.ConnectionState
}

// ExportsProvider is the narrow view of exports.Manager the health
// endpoint needs.
type ExportsProvider interface {
	List() []exports.Job
}

// TelemetryProvider is the narrow view of telemetry.Emitter the health
// endpoint needs.
type TelemetryProvider interface {
	BreakerSnapshot() telemetry.BreakerSnapshot
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	ConnectionState string                    `json:"connectionState"`
	AuthType        string                    `json:"authType,omitempty"`
	ExportCounts    map[string]int            `json:"exportCounts"`
	Telemetry       telemetry.BreakerSnapshot `json:"telemetry"`
	Timestamp       time.Time                 `json:"timestamp"`
}

// Server serves the health/status HTTP endpoints.
type Server struct {
	conn       ConnectionStateProvider
	exportsMgr ExportsProvider
	telemetry  TelemetryProvider
	addr       string
}

func NewServer(conn ConnectionStateProvider, exportsMgr ExportsProvider, tel TelemetryProvider, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{conn: conn, exportsMgr: exportsMgr, telemetry: tel, addr: fmt.Sprintf(":%d", port)}
}

// Start blocks serving /healthz and /status until the listener fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)

	slog.Info("starting health server", "address", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := s.conn.CurrentState()
	counts := map[string]int{}
	for _, job := range s.exportsMgr.List() {
		counts[string(job.Status)]++
	}

	resp := StatusResponse{
		ConnectionState: string(state.State),
		AuthType:        string(state.AuthType),
		ExportCounts:    counts,
		Telemetry:       s.telemetry.BreakerSnapshot(),
		Timestamp:       time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		slog.Error("failed to encode status response", "error", err)
	}
}
