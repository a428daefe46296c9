package exports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRegistry is the Postgres-backed alternative to SQLiteRegistry,
// for deployments that already run a shared Postgres instance for
// operational data and would rather not scatter SQLite files across
// hosts.
type PostgresRegistry struct {
	db *sql.DB
}

// PostgresRegistryConfig configures the Postgres-backed registry.
type PostgresRegistryConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

func NewPostgresRegistry(ctx context.Context, cfg PostgresRegistryConfig) (*PostgresRegistry, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres export registry: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres export registry: %w", err)
	}

	if err := runPostgresMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresRegistry{db: db}, nil
}

func (r *PostgresRegistry) Record(ctx context.Context, job Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_jobs (
			export_id, export_name, export_title, format, created_at, expires_at,
			status, absolute_path, resource_uri, bytes_written, failure_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (export_id) DO NOTHING
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

func (r *PostgresRegistry) UpdateStatus(ctx context.Context, exportID string, status Status, bytesWritten int64, failureReason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET status = $1, bytes_written = $2, failure_reason = $3 WHERE export_id = $4
	`, string(status), bytesWritten, failureReason, exportID)
	if err != nil {
		return fmt.Errorf("update export job status: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT export_id, export_name, export_title, format, created_at, expires_at,
		       status, absolute_path, resource_uri, bytes_written, failure_reason
		FROM export_jobs ORDER BY created_at DESC LIMIT $1
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

func (r *PostgresRegistry) Close() error {
	return r.db.Close()
}
