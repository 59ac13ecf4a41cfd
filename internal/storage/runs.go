package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/service"
)

var _ service.Storage = (*SQLiteStorage)(nil)

// StartRun records a new run. An empty ID is filled with a fresh UUID.
func (s *SQLiteStorage) StartRun(ctx context.Context, run *service.RunRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: nil run", ErrInvalidEvent)
	}
	if err := validateString(run.Scope, "scope"); err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = service.RunStatusRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconstruction_runs (id, scope, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Scope, run.Mode, run.Status, run.StartedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: run %s", common.ErrDuplicateEntry, run.ID)
		}
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run started with StartRun.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *service.RunRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run without id", ErrInvalidEvent)
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	skips, err := json.Marshal(run.Skips)
	if err != nil {
		return fmt.Errorf("failed to encode skips: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reconstruction_runs
		SET status = ?, finished_at = ?, days = ?, rows_written = ?, skips = ?
		WHERE id = ?`,
		run.Status, run.FinishedAt.UnixNano(), run.Days, run.RowsWritten, string(skips), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, common.ErrNotFound)
	}
	return nil
}

// LatestRun returns the most recently started run of scope.
func (s *SQLiteStorage) LatestRun(ctx context.Context, scope string) (*service.RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var run service.RunRecord
	var started int64
	var finished sql.NullInt64
	var skips string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scope, mode, status, started_at, finished_at, days, rows_written, skips
		FROM reconstruction_runs
		WHERE scope = ?
		ORDER BY started_at DESC
		LIMIT 1`, scope).Scan(
		&run.ID, &run.Scope, &run.Mode, &run.Status, &started, &finished, &run.Days, &run.RowsWritten, &skips,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no runs for scope %q: %w", scope, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		run.FinishedAt = time.Unix(0, finished.Int64).UTC()
	}
	if err := json.Unmarshal([]byte(skips), &run.Skips); err != nil {
		return nil, fmt.Errorf("%w: run %s skips: %v", common.ErrDatabaseCorrupted, run.ID, err)
	}
	return &run, nil
}
