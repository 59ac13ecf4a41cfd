package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
)

// ReplaceReport swaps the scope's report rows and aggregates in one transaction.
func (s *SQLiteStorage) ReplaceReport(ctx context.Context, scope string, rows []model.ReportRow, aggregates []model.AggregateRow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(scope, "scope"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_on_date_report WHERE scope = ?`, scope); err != nil {
			return fmt.Errorf("failed to clear report: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_on_date_agg WHERE scope = ?`, scope); err != nil {
			return fmt.Errorf("failed to clear aggregates: %w", err)
		}
		return writeReport(ctx, tx, scope, rows, aggregates)
	})
}

// AppendReport adds report rows and aggregates for days not yet present.
// Rewriting an existing day fails with common.ErrDuplicateEntry.
func (s *SQLiteStorage) AppendReport(ctx context.Context, scope string, rows []model.ReportRow, aggregates []model.AggregateRow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(scope, "scope"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return writeReport(ctx, tx, scope, rows, aggregates)
	})
}

func writeReport(ctx context.Context, tx *sql.Tx, scope string, rows []model.ReportRow, aggregates []model.AggregateRow) error {
	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO task_on_date_report (`+snapshotColumns+`, category, rule_order, display, include_in_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = rowStmt.Close() }()

	for _, row := range rows {
		if row.Scope != scope {
			return fmt.Errorf("%w: report row scope %q, batch scope %q", ErrInvalidSnapshot, row.Scope, scope)
		}
		_, err := rowStmt.ExecContext(ctx,
			row.Scope, model.FormatDay(row.Date), row.ItemID, row.Status, row.CategoryID,
			row.Project, row.Column, row.Points, row.MaintType, row.Priority,
			row.Category, row.RuleOrder, row.Display, row.IncludeInStatus)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: report row of item %d on %s", common.ErrDuplicateEntry, row.ItemID, model.FormatDay(row.Date))
			}
			return fmt.Errorf("failed to insert report row: %w", err)
		}
	}

	aggStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO task_on_date_agg (scope, agg_range, date, category, status, maint_type, points_sum, count, display)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = aggStmt.Close() }()

	for _, agg := range aggregates {
		if agg.Scope != scope {
			return fmt.Errorf("%w: aggregate scope %q, batch scope %q", ErrInvalidSnapshot, agg.Scope, scope)
		}
		_, err := aggStmt.ExecContext(ctx,
			agg.Scope, string(agg.Range), model.FormatDay(agg.Date), agg.Category, agg.Status, agg.MaintType,
			agg.PointsSum, agg.Count, agg.Display)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: aggregate %s/%s on %s", common.ErrDuplicateEntry, agg.Range, agg.Category, model.FormatDay(agg.Date))
			}
			return fmt.Errorf("failed to insert aggregate: %w", err)
		}
	}
	return nil
}

// ReportRows returns the scope's report rows ordered by date and item.
func (s *SQLiteStorage) ReportRows(ctx context.Context, scope string) ([]model.ReportRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`, category, rule_order, display, include_in_status
		FROM task_on_date_report
		WHERE scope = ?
		ORDER BY date, item_id`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.ReportRow
	for rows.Next() {
		var row model.ReportRow
		snap, err := scanSnapshot(rows, &row.Category, &row.RuleOrder, &row.Display, &row.IncludeInStatus)
		if err != nil {
			return nil, err
		}
		row.Snapshot = snap
		result = append(result, row)
	}
	return result, rows.Err()
}

// Aggregates returns the scope's aggregate buckets in a stable order.
func (s *SQLiteStorage) Aggregates(ctx context.Context, scope string) ([]model.AggregateRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, agg_range, date, category, status, maint_type, points_sum, count, display
		FROM task_on_date_agg
		WHERE scope = ?
		ORDER BY agg_range, date, category, status, maint_type`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.AggregateRow
	for rows.Next() {
		var agg model.AggregateRow
		var rng, day string
		if err := rows.Scan(&agg.Scope, &rng, &day, &agg.Category, &agg.Status, &agg.MaintType, &agg.PointsSum, &agg.Count, &agg.Display); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		agg.Range = model.Range(rng)
		if agg.Date, err = model.ParseDay(day); err != nil {
			return nil, fmt.Errorf("%w: aggregate date %q", common.ErrDatabaseCorrupted, day)
		}
		result = append(result, agg)
	}
	return result, rows.Err()
}

// MaxReportDate returns the newest report day of scope.
func (s *SQLiteStorage) MaxReportDate(ctx context.Context, scope string) (time.Time, bool, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, false, err
	}
	return maxDay(ctx, s.db, "task_on_date_report", scope)
}
