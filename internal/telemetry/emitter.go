package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	maxBufferedEvents       = 5000
	defaultFlushInterval    = 30 * time.Second
	defaultFailureThreshold = 3
	defaultCooldown         = 5 * time.Minute
)

// TokenSource supplies a bearer token for authenticated flushes, when
// Atlas API credentials are configured. A nil TokenSource means every
// flush is sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Emitter buffers telemetry events in memory and periodically flushes
// them to the configured endpoint via HTTP POST. It never blocks a tool call: Emit
// only appends to an in-memory slice.
type Emitter struct {
	mu       sync.Mutex
	events   []Event
	disabled bool

	endpoint   string
	httpClient *http.Client
	tokens     TokenSource
	breaker    *circuitBreaker
	deviceID   *DeviceIDResolver
	logf       func(format string, args ...any)

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Config configures an Emitter.
type Config struct {
	Disabled         bool
	Endpoint         string
	Tokens           TokenSource
	FlushInterval    time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	DeviceIDTimeout  time.Duration
	Logf             func(format string, args ...any)
}

// disabledByEnv mirrors the DO_NOT_TRACK convention: the variable being
// set, to any value including the empty string, disables telemetry
// regardless of configuration.
func disabledByEnv() bool {
	_, set := os.LookupEnv("DO_NOT_TRACK")
	return set
}

// New builds an Emitter and starts its background flush loop. Callers
// must call Close to stop it.
func New(cfg Config) *Emitter {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	e := &Emitter{
		disabled:   cfg.Disabled || disabledByEnv(),
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     cfg.Tokens,
		breaker:    newCircuitBreaker(orDefaultInt(cfg.FailureThreshold, defaultFailureThreshold), orDefaultDuration(cfg.Cooldown, defaultCooldown)),
		deviceID:   NewDeviceIDResolver(cfg.DeviceIDTimeout),
		logf:       logf,
		stopCh:     make(chan struct{}),
	}
	if e.disabled {
		return e
	}
	interval := orDefaultDuration(cfg.FlushInterval, defaultFlushInterval)
	e.wg.Add(1)
	go e.flushLoop(interval)
	return e
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// Emit appends a new event to the buffer. It never blocks the caller on
// network I/O; the event is picked up by the next flush tick.
func (e *Emitter) Emit(component, category, command, result string, duration time.Duration, extras map[string]any) {
	if e.disabled {
		return
	}

	props := Properties{
		Component:  component,
		Category:   category,
		Command:    command,
		DurationMS: duration.Milliseconds(),
		Result:     result,
		Extras:     extras,
	}
	if e.deviceID.Ready() {
		props.DeviceID = e.deviceID.Get(context.Background())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.events) >= maxBufferedEvents {
		// Drop the oldest event rather than grow unbounded.
		e.events = e.events[1:]
	}
	e.events = append(e.events, newEvent(time.Now().UTC().Format(time.RFC3339Nano), props))
}

func (e *Emitter) flushLoop(interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.flushOnce(context.Background())
		case <-e.stopCh:
			return
		}
	}
}

// flushOnce drains the current buffer and attempts to send it. On
// failure, the events are re-queued ahead of anything appended since.
func (e *Emitter) flushOnce(ctx context.Context) {
	if !e.breaker.Allow() {
		return
	}

	e.mu.Lock()
	if len(e.events) == 0 {
		e.mu.Unlock()
		return
	}
	batch := e.events
	e.events = nil
	e.mu.Unlock()

	if err := e.send(ctx, batch); err != nil {
		e.logf("telemetry flush failed: %v", err)
		e.breaker.RecordFailure(err.Error())
		e.mu.Lock()
		e.events = append(batch, e.events...)
		if len(e.events) > maxBufferedEvents {
			e.events = e.events[len(e.events)-maxBufferedEvents:]
		}
		e.mu.Unlock()
		return
	}
	e.breaker.RecordSuccess()
}

func (e *Emitter) send(ctx context.Context, batch []Event) error {
	if e.endpoint == "" {
		return nil
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal telemetry batch: %w", err)
	}

	status, err := e.post(ctx, payload, true)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && e.tokens != nil {
		status, err = e.post(ctx, payload, false)
		if err != nil {
			return err
		}
	}
	if status >= 300 {
		return fmt.Errorf("telemetry endpoint returned status %d", status)
	}
	return nil
}

func (e *Emitter) post(ctx context.Context, payload []byte, authenticate bool) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build telemetry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authenticate && e.tokens != nil {
		token, err := e.tokens.Token(ctx)
		if err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send telemetry request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Flush forces an immediate flush attempt, used on graceful shutdown so
// the final batch isn't lost waiting for the next tick.
func (e *Emitter) Flush(ctx context.Context) {
	if e.disabled {
		return
	}
	e.flushOnce(ctx)
}

// BreakerSnapshot exposes the circuit breaker state for the health
// endpoint.
func (e *Emitter) BreakerSnapshot() BreakerSnapshot {
	return e.breaker.Snapshot()
}

// Close stops the background flush loop and performs one last flush.
func (e *Emitter) Close() {
	if e.disabled {
		return
	}
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Flush(ctx)
}
