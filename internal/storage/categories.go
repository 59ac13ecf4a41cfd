package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
)

// SaveItems upserts item metadata.
func (s *SQLiteStorage) SaveItems(ctx context.Context, items []model.Item) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateItems(items); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO items (id, external_id, title, points_at_ingest, status_at_ingest)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				external_id = excluded.external_id,
				title = excluded.title,
				points_at_ingest = excluded.points_at_ingest,
				status_at_ingest = excluded.status_at_ingest`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, item.ID, item.ExternalID, item.Title, item.PointsAtIngest, item.StatusAtIngest); err != nil {
				return fmt.Errorf("failed to save item %d: %w", item.ID, err)
			}
		}
		slog.Debug("saved items", "count", len(items))
		return nil
	})
}

// SaveCategories upserts projects and tags.
func (s *SQLiteStorage) SaveCategories(ctx context.Context, categories []model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for i, cat := range categories {
		if cat.ID == 0 || cat.Name == "" {
			return fmt.Errorf("%w: category at index %d needs id and name", ErrInvalidItem, i)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO categories (id, name, board_id)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				board_id = excluded.board_id`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, cat := range categories {
			if _, err := stmt.ExecContext(ctx, cat.ID, cat.Name, cat.BoardID); err != nil {
				return fmt.Errorf("failed to save category %q: %w", cat.Name, err)
			}
		}
		return nil
	})
}

// SaveColumns upserts workboard columns.
func (s *SQLiteStorage) SaveColumns(ctx context.Context, columns []model.Column) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for i, col := range columns {
		if col.ID == "" {
			return fmt.Errorf("%w: column at index %d has no id", ErrInvalidItem, i)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO board_columns (id, name, board_id)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				board_id = excluded.board_id`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, col := range columns {
			if _, err := stmt.ExecContext(ctx, col.ID, col.Name, col.BoardID); err != nil {
				return fmt.Errorf("failed to save column %s: %w", col.ID, err)
			}
		}
		return nil
	})
}

// GetItem returns an item by id.
func (s *SQLiteStorage) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var item model.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, title, points_at_ingest, status_at_ingest
		FROM items WHERE id = ?`, id).Scan(
		&item.ID, &item.ExternalID, &item.Title, &item.PointsAtIngest, &item.StatusAtIngest,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}
	return &item, nil
}

// GetItems returns the known items among ids, keyed by id.
func (s *SQLiteStorage) GetItems(ctx context.Context, ids []int64) (map[int64]model.Item, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	items := make(map[int64]model.Item, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	in, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, title, points_at_ingest, status_at_ingest
		FROM items WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.ExternalID, &item.Title, &item.PointsAtIngest, &item.StatusAtIngest); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// GetCategories returns all categories ordered by id.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, board_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.BoardID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetColumns returns all workboard columns.
func (s *SQLiteStorage) GetColumns(ctx context.Context) ([]model.Column, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, board_id FROM board_columns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []model.Column
	for rows.Next() {
		var col model.Column
		if err := rows.Scan(&col.ID, &col.Name, &col.BoardID); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}
