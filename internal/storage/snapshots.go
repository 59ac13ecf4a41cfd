package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
)

const snapshotColumns = `scope, date, item_id, status, category_id, project, column_name, points, maint_type, priority`

// WriteSnapshot inserts one day's rows for scope. Existing days are never
// overwritten; a second write of the same (scope, day, item) fails.
func (s *SQLiteStorage) WriteSnapshot(ctx context.Context, scope string, day time.Time, rows []model.Snapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(scope, "scope"); err != nil {
		return err
	}
	if err := validateDay(day); err != nil {
		return err
	}
	if err := validateSnapshots(scope, day, rows); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertSnapshots(ctx, tx, `INSERT INTO task_on_date (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, nil, rows)
	})
}

func insertSnapshots(ctx context.Context, tx *sql.Tx, query string, prefix []any, rows []model.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		args := append(append([]any{}, prefix...),
			row.Scope, model.FormatDay(row.Date), row.ItemID, row.Status, row.CategoryID,
			row.Project, row.Column, row.Points, row.MaintType, row.Priority)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: item %d on %s", common.ErrDuplicateEntry, row.ItemID, model.FormatDay(row.Date))
			}
			return fmt.Errorf("failed to insert snapshot of item %d: %w", row.ItemID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// WipeScope removes every snapshot, report row, and aggregate of scope.
func (s *SQLiteStorage) WipeScope(ctx context.Context, scope string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(scope, "scope"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return clearScope(ctx, tx, scope, "task_on_date", "task_on_date_staging", "task_on_date_report", "task_on_date_agg")
	})
}

func clearScope(ctx context.Context, tx *sql.Tx, scope string, tables ...string) error {
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE scope = ?", scope); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}
	return nil
}

// MaxDate returns the newest snapshot day of scope.
func (s *SQLiteStorage) MaxDate(ctx context.Context, scope string) (time.Time, bool, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, false, err
	}
	return maxDay(ctx, s.db, "task_on_date", scope)
}

func maxDay(ctx context.Context, q queryer, table, scope string) (time.Time, bool, error) {
	var raw sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT MAX(date) FROM "+table+" WHERE scope = ?", scope).Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query max date of %s: %w", table, err)
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	day, err := model.ParseDay(raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %s holds date %q", common.ErrDatabaseCorrupted, table, raw.String)
	}
	return day, true, nil
}

// Snapshots returns the rows of scope with from <= date <= to.
func (s *SQLiteStorage) Snapshots(ctx context.Context, scope string, from, to time.Time) ([]model.Snapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM task_on_date
		WHERE scope = ? AND date >= ? AND date <= ?
		ORDER BY date, item_id`, scope, model.FormatDay(from), model.FormatDay(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r scanner, extra ...any) (model.Snapshot, error) {
	var snap model.Snapshot
	var day string
	dest := append([]any{
		&snap.Scope, &day, &snap.ItemID, &snap.Status, &snap.CategoryID,
		&snap.Project, &snap.Column, &snap.Points, &snap.MaintType, &snap.Priority,
	}, extra...)
	if err := r.Scan(dest...); err != nil {
		return snap, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	parsed, err := model.ParseDay(day)
	if err != nil {
		return snap, fmt.Errorf("%w: snapshot date %q", common.ErrDatabaseCorrupted, day)
	}
	snap.Date = parsed
	return snap, nil
}

// ResolvedItemsOn returns the items of scope whose status on day equals status.
func (s *SQLiteStorage) ResolvedItemsOn(ctx context.Context, scope string, day time.Time, status string) (map[int64]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id FROM task_on_date
		WHERE scope = ? AND date = ? AND status = ?`, scope, model.FormatDay(day), status)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	resolved := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		resolved[id] = true
	}
	return resolved, rows.Err()
}

// BeginRebuild starts staging a full reconstruction of scope under runID.
// Leftovers of earlier interrupted rebuilds of the scope are discarded.
func (s *SQLiteStorage) BeginRebuild(ctx context.Context, scope, runID string) (service.Rebuild, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(scope, "scope"); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_on_date_staging WHERE scope = ?`, scope); err != nil {
		return nil, fmt.Errorf("failed to clear staging: %w", err)
	}
	return &sqliteRebuild{storage: s, scope: scope, runID: runID}, nil
}

type sqliteRebuild struct {
	storage *SQLiteStorage
	scope   string
	runID   string
}

func (r *sqliteRebuild) WriteSnapshot(ctx context.Context, scope string, day time.Time, rows []model.Snapshot) error {
	if scope != r.scope {
		return fmt.Errorf("%w: rebuild of %q cannot write scope %q", ErrInvalidSnapshot, r.scope, scope)
	}
	if err := validateDay(day); err != nil {
		return err
	}
	if err := validateSnapshots(scope, day, rows); err != nil {
		return err
	}

	return r.storage.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_on_date_staging WHERE run_id = ? AND date = ?`,
			r.runID, model.FormatDay(day)); err != nil {
			return fmt.Errorf("failed to clear staged day: %w", err)
		}
		return insertSnapshots(ctx, tx,
			`INSERT INTO task_on_date_staging (run_id, `+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{r.runID}, rows)
	})
}

// Commit replaces the scope's live rows with the staged rows. Report rows
// and aggregates were derived from the replaced snapshots, so they go too.
func (r *sqliteRebuild) Commit(ctx context.Context) error {
	return r.storage.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearScope(ctx, tx, r.scope, "task_on_date", "task_on_date_report", "task_on_date_agg"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_on_date (`+snapshotColumns+`)
			SELECT `+snapshotColumns+` FROM task_on_date_staging WHERE run_id = ?`, r.runID); err != nil {
			return fmt.Errorf("failed to publish staged snapshots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_on_date_staging WHERE run_id = ?`, r.runID); err != nil {
			return fmt.Errorf("failed to clear staging: %w", err)
		}
		return nil
	})
}

// Abort drops the staged rows. The live rows are untouched.
func (r *sqliteRebuild) Abort(ctx context.Context) error {
	if _, err := r.storage.db.ExecContext(ctx, `DELETE FROM task_on_date_staging WHERE run_id = ?`, r.runID); err != nil {
		return fmt.Errorf("failed to discard staged snapshots: %w", err)
	}
	return nil
}
