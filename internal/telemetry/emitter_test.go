package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmitterDisabledByDoNotTrack(t *testing.T) {
	t.Setenv("DO_NOT_TRACK", "1")
	e := New(Config{Endpoint: "http://example.invalid"})
	defer e.Close()
	e.Emit("tools", "read", "find", ResultSuccess, time.Millisecond, nil)

	e.mu.Lock()
	n := len(e.events)
	e.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no buffered events when disabled, got %d", n)
	}
}

func TestEmitterFlushSendsBatch(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []Event
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decode batch: %v", err)
		}
		atomic.AddInt32(&received, int32(len(batch)))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, FlushInterval: time.Hour})
	defer e.Close()

	e.Emit("tools", "read", "find", ResultSuccess, 5*time.Millisecond, nil)
	e.Emit("tools", "create", "insert-many", ResultFailure, 2*time.Millisecond, nil)

	e.Flush(context.Background())

	if atomic.LoadInt32(&received) != 2 {
		t.Fatalf("expected server to receive 2 events, got %d", received)
	}
}

func TestEmitterFallsBackToUnauthenticatedOn401(t *testing.T) {
	var sawAuthHeader, sawNoAuthHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuthHeader = true
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sawNoAuthHeader = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, FlushInterval: time.Hour, Tokens: fakeTokenSource{}})
	defer e.Close()

	e.Emit("tools", "read", "find", ResultSuccess, time.Millisecond, nil)
	e.Flush(context.Background())

	if !sawAuthHeader || !sawNoAuthHeader {
		t.Fatalf("expected authenticated attempt then unauthenticated fallback, got auth=%v noauth=%v", sawAuthHeader, sawNoAuthHeader)
	}
}

func TestEmitterRequeuesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(Config{Endpoint: srv.URL, FlushInterval: time.Hour})
	defer e.Close()

	e.Emit("tools", "read", "find", ResultSuccess, time.Millisecond, nil)
	e.Flush(context.Background())

	e.mu.Lock()
	n := len(e.events)
	e.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected failed flush to re-queue its event, got %d buffered", n)
	}
}

type fakeTokenSource struct{}

func (fakeTokenSource) Token(ctx context.Context) (string, error) { return "atlas-token", nil }
