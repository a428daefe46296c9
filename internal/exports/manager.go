package exports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/driver"
	"github.com/mongodb-labs/mongodb-mcp-server-go/internal/logging"
)

const (
	defaultExportTTL       = 10 * time.Minute
	defaultCleanupInterval = 30 * time.Second
	writeQueueDepth        = 256
)

// NotifyFunc is called on every terminal transition of a job (ready,
// failed, expired) so the caller can emit an MCP resource-updated
// notification. Transitions to running are not notified: the caller
// already has the export URI from CreateJSONExport's return value.
type NotifyFunc func(job Job)

// CreateJSONExportInput describes one export request.
type CreateJSONExportInput struct {
	Cursor      driver.Cursor
	ExportName  string
	ExportTitle string
	Format      Format
}

// CreateJSONExportResult is returned immediately; the export itself
// streams to disk in the background.
type CreateJSONExportResult struct {
	ExportID     string
	ExportURI    string
	AbsolutePath string
}

// Manager owns the authoritative in-memory Job map and streams cursor
// contents to files in ExportsPath. Registry is a secondary, best-effort
// audit trail: a registry write failure is logged, never surfaced to the
// caller.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	exportsPath     string
	ttl             time.Duration
	cleanupInterval time.Duration

	registry Registry
	archiver Archiver
	notify   NotifyFunc
	logger   *logging.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Manager at construction time.
type Option func(*Manager)

func WithRegistry(r Registry) Option { return func(m *Manager) { m.registry = r } }
func WithArchiver(a Archiver) Option { return func(m *Manager) { m.archiver = a } }
func WithNotifyFunc(f NotifyFunc) Option {
	return func(m *Manager) { m.notify = f }
}
func WithTTL(ttl time.Duration) Option { return func(m *Manager) { m.ttl = ttl } }
func WithCleanupInterval(d time.Duration) Option {
	return func(m *Manager) { m.cleanupInterval = d }
}
func WithLogger(l *logging.Logger) Option { return func(m *Manager) { m.logger = l } }

// NewManager creates a Manager writing export files under exportsPath,
// which must already exist and be writable.
func NewManager(exportsPath string, opts ...Option) *Manager {
	m := &Manager{
		jobs:            make(map[string]*Job),
		exportsPath:     exportsPath,
		ttl:             defaultExportTTL,
		cleanupInterval: defaultCleanupInterval,
		registry:        NoopRegistry{},
		notify:          func(Job) {},
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.New(nil)
	}
	m.logger = m.logger.With("exportsManager")

	m.wg.Add(1)
	go m.cleanupLoop()
	return m
}

// CreateJSONExport starts streaming cur to a file and returns
// immediately with the job's resource URI. The cursor is owned by the
// manager from this call onward; callers must not use it afterward.
func (m *Manager) CreateJSONExport(ctx context.Context, in CreateJSONExportInput) (CreateJSONExportResult, error) {
	if in.Format == "" {
		in.Format = FormatRelaxed
	}
	exportID := uuid.NewString()
	absolutePath := filepath.Join(m.exportsPath, exportID+"-"+sanitizeFileName(in.ExportName))

	job := &Job{
		ExportID:     exportID,
		ExportName:   in.ExportName,
		ExportTitle:  in.ExportTitle,
		Format:       in.Format,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(m.ttl),
		Status:       StatusRunning,
		AbsolutePath: absolutePath,
		ResourceURI:  ResourceURIFor(exportID),
	}

	m.mu.Lock()
	m.jobs[exportID] = job
	m.mu.Unlock()

	if err := m.registry.Record(ctx, *job); err != nil {
		m.logger.Warning("failed to record export job %s in registry: %v", exportID, err)
	}

	m.wg.Add(1)
	go m.stream(exportID, in.Cursor)

	return CreateJSONExportResult{ExportID: exportID, ExportURI: job.ResourceURI, AbsolutePath: absolutePath}, nil
}

// stream drains cur into the job's file through a bounded queue, so a
// slow consumer (or a stalled disk) cannot grow memory unbounded while
// the cursor keeps producing documents.
func (m *Manager) stream(exportID string, cur driver.Cursor) {
	defer m.wg.Done()

	queue := make(chan bson.D, writeQueueDepth)
	done := make(chan error, 1)

	go func() {
		done <- m.writeLoop(exportID, queue)
	}()

	ctx := context.Background()
	var readErr error
	for cur.Next(ctx) {
		var doc bson.D
		if err := cur.Decode(&doc); err != nil {
			readErr = fmt.Errorf("decode export cursor document: %w", err)
			break
		}
		queue <- doc
	}
	if readErr == nil {
		readErr = cur.Err()
	}
	close(queue)
	cur.Close(ctx)

	writeErr := <-done
	if readErr == nil {
		readErr = writeErr
	}

	if readErr != nil {
		m.fail(exportID, readErr)
		return
	}
	m.ready(exportID)
}

func (m *Manager) writeLoop(exportID string, queue <-chan bson.D) error {
	job, ok := m.get(exportID)
	if !ok {
		return fmt.Errorf("export job %s disappeared before writing started", exportID)
	}

	f, err := os.Create(job.AbsolutePath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	var written int64
	first := true
	if _, err := f.WriteString("["); err != nil {
		return err
	}
	for doc := range queue {
		var rendered string
		var err error
		if job.Format == FormatCanonical {
			rendered, err = driver.ToCanonicalExtJSON(doc)
		} else {
			rendered, err = driver.ToRelaxedExtJSON(doc)
		}
		if err != nil {
			return fmt.Errorf("render export document: %w", err)
		}
		if !first {
			if _, err := f.WriteString(","); err != nil {
				return err
			}
		}
		first = false
		if _, err := f.WriteString(rendered); err != nil {
			return err
		}
		written += int64(len(rendered))

		m.mu.Lock()
		if j, ok := m.jobs[exportID]; ok {
			j.BytesWritten = written
		}
		m.mu.Unlock()
	}
	if _, err := f.WriteString("]"); err != nil {
		return err
	}
	return nil
}

func (m *Manager) ready(exportID string) {
	job := m.transition(exportID, StatusReady, "")
	if job == nil {
		return
	}
	ctx := context.Background()
	if err := m.registry.UpdateStatus(ctx, exportID, StatusReady, job.BytesWritten, ""); err != nil {
		m.logger.Warning("failed to update export job %s status in registry: %v", exportID, err)
	}
	if m.archiver != nil {
		if err := archiveWithTimeout(ctx, m.archiver, *job, 2*time.Minute); err != nil {
			m.logger.Warning("failed to archive export job %s: %v", exportID, err)
		}
	}
	m.notify(*job)
}

func (m *Manager) fail(exportID string, cause error) {
	job := m.transition(exportID, StatusFailed, cause.Error())
	if job == nil {
		return
	}
	m.logger.Error("export job %s failed: %v", exportID, cause)
	if err := m.registry.UpdateStatus(context.Background(), exportID, StatusFailed, job.BytesWritten, cause.Error()); err != nil {
		m.logger.Warning("failed to update export job %s status in registry: %v", exportID, err)
	}
	m.notify(*job)
}

func (m *Manager) transition(exportID string, status Status, failureReason string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[exportID]
	if !ok {
		return nil
	}
	job.Status = status
	job.FailureReason = failureReason
	clone := *job
	return &clone
}

func (m *Manager) get(exportID string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[exportID]
	if !ok {
		return nil, false
	}
	clone := *job
	return &clone, true
}

// ErrExportNotFound is returned by Get when exportID names no job the
// manager currently tracks, whether because it never existed or because
// it expired and was swept.
var ErrExportNotFound = fmt.Errorf("export job not found")

// ErrExportStillRunning is returned by Get when the export's file is not
// yet complete, so callers can surface a pending/not-ready response
// instead of reading a partial file.
var ErrExportStillRunning = fmt.Errorf("export job is still running")

// Get returns the current state of an export, or an error describing why
// it can't be read yet (or ever).
func (m *Manager) Get(exportID string) (Job, error) {
	job, ok := m.get(exportID)
	if !ok {
		return Job{}, ErrExportNotFound
	}
	if job.Status == StatusRunning {
		return Job{}, ErrExportStillRunning
	}
	return *job, nil
}

// List returns a snapshot of every job the manager currently tracks.
func (m *Manager) List() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *job)
	}
	return out
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

// sweep expires jobs past their TTL and removes their files, notifying
// subscribers so an agent holding a stale resource URI learns it's gone.
func (m *Manager) sweep() {
	now := time.Now()
	var expired []Job

	m.mu.Lock()
	for id, job := range m.jobs {
		if job.Status == StatusRunning || now.Before(job.ExpiresAt) {
			continue
		}
		if job.Status != StatusExpired {
			job.Status = StatusExpired
			expired = append(expired, *job)
		}
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	for _, job := range expired {
		if job.AbsolutePath != "" {
			if err := os.Remove(job.AbsolutePath); err != nil && !os.IsNotExist(err) {
				m.logger.Warning("failed to remove expired export file %s: %v", job.AbsolutePath, err)
			}
		}
		if err := m.registry.UpdateStatus(context.Background(), job.ExportID, StatusExpired, job.BytesWritten, job.FailureReason); err != nil {
			m.logger.Warning("failed to update export job %s status in registry: %v", job.ExportID, err)
		}
		m.notify(job)
	}
}

// Close stops the cleanup sweep and waits for any in-flight export
// streams to finish, then closes the registry.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	return m.registry.Close()
}

func sanitizeFileName(name string) string {
	if name == "" {
		return "export.json"
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
