// File: internal/store/store.go
// Package store persists fill run history to PostgreSQL. Persistence is
// optional: a run completes fine without a database, history is purely an
// audit trail.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/videx-autofill/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can mock it.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const sqlCreateRuns = `
	CREATE TABLE IF NOT EXISTS fill_runs (
		run_id        TEXT PRIMARY KEY,
		success_count INTEGER NOT NULL,
		fail_count    INTEGER NOT NULL,
		submitted     BOOLEAN NOT NULL,
		artifact_path TEXT,
		fields        JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);`

const sqlInsertRun = `
	INSERT INTO fill_runs (run_id, success_count, fail_count, submitted, artifact_path, fields, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);`

const sqlRecentRuns = `
	SELECT run_id, success_count, fail_count, submitted, artifact_path, created_at
	FROM fill_runs ORDER BY created_at DESC LIMIT $1;`

// RunRecord is one historical fill run.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	SuccessCount int       `json:"success_count"`
	FailCount    int       `json:"fail_count"`
	Submitted    bool      `json:"submitted"`
	ArtifactPath string    `json:"artifact_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store provides the PostgreSQL-backed run history.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// New creates a store, verifies the connection, and ensures the schema.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := &Store{pool: pool, log: logger.Named("store"), now: time.Now}
	if _, err := pool.Exec(ctx, sqlCreateRuns); err != nil {
		return nil, fmt.Errorf("ensuring run history table: %w", err)
	}
	return s, nil
}

// RecordRun persists one run outcome.
func (s *Store) RecordRun(ctx context.Context, result *schemas.FillResult) error {
	fields, err := json.Marshal(result.Fields)
	if err != nil {
		return fmt.Errorf("encoding field outcomes: %w", err)
	}

	var artifactPath *string
	if result.ArtifactPath != "" {
		artifactPath = &result.ArtifactPath
	}

	_, err = s.pool.Exec(ctx, sqlInsertRun,
		result.RunID,
		result.SuccessCount,
		result.FailCount,
		result.Submitted,
		artifactPath,
		fields,
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.RunID, err)
	}
	s.log.Debug("Run recorded", zap.String("run_id", result.RunID))
	return nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var artifactPath *string
		if err := rows.Scan(&rec.RunID, &rec.SuccessCount, &rec.FailCount, &rec.Submitted, &artifactPath, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}
		if artifactPath != nil {
			rec.ArtifactPath = *artifactPath
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
