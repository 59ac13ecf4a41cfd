// Package edges materializes the category memberships active on a day.
package edges

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
)

// Materializer answers membership questions against the event log.
type Materializer struct {
	store service.EventStore
}

// NewMaterializer creates a materializer over store.
func NewMaterializer(store service.EventStore) *Materializer {
	return &Materializer{store: store}
}

// ActiveEdges returns, for every item with at least one membership among
// categories no later than day, the set of those memberships. Edges are
// additive, so the result for a later day is always a superset.
func (m *Materializer) ActiveEdges(ctx context.Context, categories []int64, day time.Time) (map[int64]model.EdgeSet, error) {
	if day.IsZero() {
		return nil, fmt.Errorf("active edges: zero day")
	}
	result, err := m.store.ActiveEdges(ctx, categories, model.AsOf(day))
	if err != nil {
		return nil, fmt.Errorf("active edges on %s: %w", model.FormatDay(day), err)
	}

	for id, set := range result {
		if len(set) == 0 {
			delete(result, id)
		}
	}

	slog.Debug("materialized edges",
		"date", model.FormatDay(day),
		"categories", len(categories),
		"items", len(result))
	return result, nil
}

// ForItem returns one item's memberships among categories no later than day.
func (m *Materializer) ForItem(ctx context.Context, itemID int64, categories []int64, day time.Time) (model.EdgeSet, error) {
	if day.IsZero() {
		return nil, fmt.Errorf("item edges: zero day")
	}
	set, err := m.store.ActiveEdgeSet(ctx, itemID, categories, model.AsOf(day))
	if err != nil {
		return nil, fmt.Errorf("edges of item %d on %s: %w", itemID, model.FormatDay(day), err)
	}
	return set, nil
}

// Members returns the items that are members of category no later than day.
func (m *Materializer) Members(ctx context.Context, categoryID int64, day time.Time) ([]int64, error) {
	if day.IsZero() {
		return nil, fmt.Errorf("members: zero day")
	}
	ids, err := m.store.AllItemsWithEdge(ctx, categoryID, model.AsOf(day))
	if err != nil {
		return nil, fmt.Errorf("members of %d on %s: %w", categoryID, model.FormatDay(day), err)
	}
	return ids, nil
}
