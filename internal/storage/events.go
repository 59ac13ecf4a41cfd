package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
)

// AppendTransactionEvents appends attribute changes. Events already present
// (by event id) are ignored, so reloading a full log is idempotent.
func (s *SQLiteStorage) AppendTransactionEvents(ctx context.Context, events []model.TransactionEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactionEvents(events); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transaction_events (event_id, item_id, attribute, new_value, ts)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, ev := range events {
			if _, err := stmt.ExecContext(ctx, ev.ID, ev.ItemID, ev.Attribute, ev.NewValue, ev.Timestamp.UnixNano()); err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", ev.ID, err)
			}
		}
		return nil
	})
}

// AppendEdgeEvents appends membership facts; duplicates are ignored.
func (s *SQLiteStorage) AppendEdgeEvents(ctx context.Context, events []model.EdgeEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEdgeEvents(events); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO edge_events (item_id, category_id, observed_at)
			VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, ev := range events {
			if _, err := stmt.ExecContext(ctx, ev.ItemID, ev.CategoryID, ev.ObservedAt.UnixNano()); err != nil {
				return fmt.Errorf("failed to insert edge %d->%d: %w", ev.ItemID, ev.CategoryID, err)
			}
		}
		return nil
	})
}

// AppendLinkEvents appends parent/child facts; duplicates are ignored.
func (s *SQLiteStorage) AppendLinkEvents(ctx context.Context, events []model.LinkEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLinkEvents(events); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO link_events (parent_id, child_id, observed_at)
			VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, ev := range events {
			if _, err := stmt.ExecContext(ctx, ev.ParentID, ev.ChildID, ev.ObservedAt.UnixNano()); err != nil {
				return fmt.Errorf("failed to insert link %d->%d: %w", ev.ParentID, ev.ChildID, err)
			}
		}
		return nil
	})
}

// LatestAttributeValue returns the newest value of attribute strictly before asOf.
// Ties on timestamp go to the later insertion.
func (s *SQLiteStorage) LatestAttributeValue(ctx context.Context, itemID int64, attribute string, asOf time.Time) (string, bool, error) {
	if err := validateContext(ctx); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT new_value
		FROM transaction_events
		WHERE item_id = ? AND attribute = ? AND ts < ?
		ORDER BY ts DESC, seq DESC
		LIMIT 1`, itemID, attribute, asOf.UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query %s of item %d: %w", attribute, itemID, err)
	}
	return value, true, nil
}

// TransactionEvents returns the item's events for attribute in log order.
func (s *SQLiteStorage) TransactionEvents(ctx context.Context, itemID int64, attribute string) ([]model.TransactionEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, event_id, item_id, attribute, new_value, ts
		FROM transaction_events
		WHERE item_id = ? AND attribute = ?
		ORDER BY ts, seq`, itemID, attribute)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.TransactionEvent
	for rows.Next() {
		var ev model.TransactionEvent
		var ts int64
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.ItemID, &ev.Attribute, &ev.NewValue, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ActiveEdgeSet returns the item's memberships among categories strictly before asOf.
func (s *SQLiteStorage) ActiveEdgeSet(ctx context.Context, itemID int64, categories []int64, asOf time.Time) (model.EdgeSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	set := model.NewEdgeSet()
	if len(categories) == 0 {
		return set, nil
	}

	in, args := inClause(categories)
	args = append([]any{itemID, asOf.UnixNano()}, args...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category_id
		FROM edge_events
		WHERE item_id = ? AND observed_at < ? AND category_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges of item %d: %w", itemID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		set.Add(id)
	}
	return set, rows.Err()
}

// ActiveEdges returns memberships among categories for every item that has one.
func (s *SQLiteStorage) ActiveEdges(ctx context.Context, categories []int64, asOf time.Time) (map[int64]model.EdgeSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	result := make(map[int64]model.EdgeSet)
	if len(categories) == 0 {
		return result, nil
	}

	in, args := inClause(categories)
	args = append([]any{asOf.UnixNano()}, args...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT item_id, category_id
		FROM edge_events
		WHERE observed_at < ? AND category_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var itemID, categoryID int64
		if err := rows.Scan(&itemID, &categoryID); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		set, ok := result[itemID]
		if !ok {
			set = model.NewEdgeSet()
			result[itemID] = set
		}
		set.Add(categoryID)
	}
	return result, rows.Err()
}

// AllItemsWithEdge returns the ids of items that are members of category.
func (s *SQLiteStorage) AllItemsWithEdge(ctx context.Context, categoryID int64, asOf time.Time) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT item_id
		FROM edge_events
		WHERE category_id = ? AND observed_at < ?
		ORDER BY item_id`, categoryID, asOf.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query members of %d: %w", categoryID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ChildLinks returns parent -> children for links strictly before asOf.
func (s *SQLiteStorage) ChildLinks(ctx context.Context, asOf time.Time) (map[int64][]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT parent_id, child_id
		FROM link_events
		WHERE observed_at < ?
		ORDER BY parent_id, child_id`, asOf.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	links := make(map[int64][]int64)
	for rows.Next() {
		var parent, child int64
		if err := rows.Scan(&parent, &child); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links[parent] = append(links[parent], child)
	}
	return links, rows.Err()
}

// EarliestEventDate returns the day of the oldest transaction or edge.
func (s *SQLiteStorage) EarliestEventDate(ctx context.Context) (time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, err
	}

	var earliest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(t) FROM (
			SELECT MIN(ts) AS t FROM transaction_events
			UNION ALL
			SELECT MIN(observed_at) AS t FROM edge_events
		)`).Scan(&earliest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query earliest event: %w", err)
	}
	if !earliest.Valid {
		return time.Time{}, fmt.Errorf("event log is empty: %w", common.ErrNotFound)
	}
	return model.DayOf(time.Unix(0, earliest.Int64)), nil
}
