package exports

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRegistry persists export job metadata to an embedded SQLite
// database, opened with WAL mode for read/write concurrency, following
// the same connection-pool-plus-pragma-DSN shape used throughout this
// codebase for local embedded storage.
type SQLiteRegistry struct {
	db *sql.DB
}

// SQLiteRegistryConfig configures the SQLite-backed registry.
type SQLiteRegistryConfig struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLiteRegistryConfig returns sensible defaults for an
// export-registry database colocated with the server's local data dir.
func DefaultSQLiteRegistryConfig(path string) SQLiteRegistryConfig {
	return SQLiteRegistryConfig{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// NewSQLiteRegistry opens (creating if needed) the export registry
// database and runs its schema migration.
func NewSQLiteRegistry(cfg SQLiteRegistryConfig) (*SQLiteRegistry, error) {
	dbPath := cfg.Path
	if dbPath != ":memory:" {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, fmt.Errorf("resolve export registry path: %w", err)
		}
		dbPath = absPath
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dbPath, int(cfg.BusyTimeout.Milliseconds()))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open export registry: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping export registry: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create export registry schema: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS export_jobs (
	export_id      TEXT PRIMARY KEY,
	export_name    TEXT NOT NULL,
	export_title   TEXT NOT NULL,
	format         TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	expires_at     TIMESTAMP NOT NULL,
	status         TEXT NOT NULL,
	absolute_path  TEXT NOT NULL,
	resource_uri   TEXT NOT NULL,
	bytes_written  INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_export_jobs_created_at ON export_jobs(created_at);
`

func (r *SQLiteRegistry) Record(ctx context.Context, job Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_jobs (
			export_id, export_name, export_title, format, created_at, expires_at,
			status, absolute_path, resource_uri, bytes_written, failure_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(export_id) DO NOTHING
	`,
		job.ExportID, job.ExportName, job.ExportTitle, string(job.Format),
		job.CreatedAt, job.ExpiresAt, string(job.Status), job.AbsolutePath,
		job.ResourceURI, job.BytesWritten, job.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("record export job: %w", err)
	}
	return nil
}

func (r *SQLiteRegistry) UpdateStatus(ctx context.Context, exportID string, status Status, bytesWritten int64, failureReason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET status = ?, bytes_written = ?, failure_reason = ? WHERE export_id = ?
	`, string(status), bytesWritten, failureReason, exportID)
	if err != nil {
		return fmt.Errorf("update export job status: %w", err)
	}
	return nil
}

func (r *SQLiteRegistry) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT export_id, export_name, export_title, format, created_at, expires_at,
		       status, absolute_path, resource_uri, bytes_written, failure_reason
		FROM export_jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		var format, status string
		var failureReason sql.NullString
		if err := rows.Scan(&j.ExportID, &j.ExportName, &j.ExportTitle, &format, &j.CreatedAt, &j.ExpiresAt,
			&status, &j.AbsolutePath, &j.ResourceURI, &j.BytesWritten, &failureReason); err != nil {
			return nil, fmt.Errorf("scan export job row: %w", err)
		}
		j.Format = Format(format)
		j.Status = Status(status)
		j.FailureReason = failureReason.String
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
