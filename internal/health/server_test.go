package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/connection"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/exports"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/telemetry"
)

type fakeConnProvider struct{ state connection.ConnectionState }

func (f fakeConnProvider) CurrentState() connection.ConnectionState { return f.state }

type fakeExportsProvider struct{ jobs []exports.Job }

func (f fakeExportsProvider) List() []exports.Job { return f.jobs }

type fakeTelemetryProvider struct{}

func (fakeTelemetryProvider) BreakerSnapshot() telemetry.BreakerSnapshot {
	return telemetry.BreakerSnapshot{Open: false}
}

func TestHandleStatusReportsConnectionAndExportState(t *testing.T) {
	conn := fakeConnProvider{state: connection.ConnectionState{State: connection.StateConnected, AuthType: driver.AuthTypeScram}}
	exp := fakeExportsProvider{jobs: []exports.Job{{Status: exports.StatusReady}, {Status: exports.StatusRunning}}}
	s := NewServer(conn, exp, fakeTelemetryProvider{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConnectionState != string(connection.StateConnected) {
		t.Fatalf("expected connected state, got %q", resp.ConnectionState)
	}
	if resp.ExportCounts["ready"] != 1 || resp.ExportCounts["running"] != 1 {
		t.Fatalf("unexpected export counts: %+v", resp.ExportCounts)
	}
}

func TestHandleHealthzReturnsOK(t *testing.T) {
	s := NewServer(fakeConnProvider{}, fakeExportsProvider{}, fakeTelemetryProvider{}, 0)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
