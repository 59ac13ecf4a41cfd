// Package reconstruct rebuilds the state of an item on a given day from the
// event log.
package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/config"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
)

// Reconstructor builds snapshot rows for one scope. It is safe for
// concurrent use.
type Reconstructor struct {
	store   service.EventStore
	scope   *config.Scope
	catalog *model.Catalog
	items   map[int64]model.Item
	order   []int64
	mu      sync.RWMutex
}

// New creates a reconstructor for scope.
func New(store service.EventStore, scope *config.Scope, catalog *model.Catalog) *Reconstructor {
	return &Reconstructor{
		store:   store,
		scope:   scope,
		catalog: catalog,
		items:   make(map[int64]model.Item),
		order:   scope.Projects,
	}
}

// Preload caches item metadata so Reconstruct does not fetch items one by one.
func (r *Reconstructor) Preload(ctx context.Context, ids []int64) error {
	r.mu.RLock()
	var missing []int64
	for _, id := range ids {
		if _, ok := r.items[id]; !ok {
			missing = append(missing, id)
		}
	}
	r.mu.RUnlock()
	if len(missing) == 0 {
		return nil
	}

	items, err := r.store.GetItems(ctx, missing)
	if err != nil {
		return fmt.Errorf("preload items: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range missing {
		// unknown items are cached as zero values
		r.items[id] = items[id]
	}
	return nil
}

func (r *Reconstructor) item(ctx context.Context, id int64) (model.Item, error) {
	r.mu.RLock()
	item, ok := r.items[id]
	r.mu.RUnlock()
	if ok {
		return item, nil
	}

	got, err := r.store.GetItem(ctx, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		item = model.Item{ID: id}
	case err != nil:
		return model.Item{}, err
	default:
		item = *got
	}

	r.mu.Lock()
	r.items[id] = item
	r.mu.Unlock()
	return item, nil
}

// BestEdge returns the first scope project, in priority order, that the
// item is a member of.
func (r *Reconstructor) BestEdge(edges model.EdgeSet) (int64, bool) {
	for _, id := range r.order {
		if edges.Has(id) {
			return id, true
		}
	}
	return 0, false
}

// MaintType classifies an item from its tags.
func (r *Reconstructor) MaintType(edges model.EdgeSet) string {
	tags := r.scope.Tags
	switch {
	case tags.NewFunctionality != 0 && edges.Has(tags.NewFunctionality):
		return model.MaintTypeNew
	case tags.Maintenance != 0 && edges.Has(tags.Maintenance):
		return model.MaintTypeMaintenance
	default:
		return ""
	}
}

// Reconstruct builds the item's row for day from events no later than day.
// Missing or malformed optional data never fails; it is reported in the Outcome.
func (r *Reconstructor) Reconstruct(ctx context.Context, itemID int64, day time.Time, edges model.EdgeSet) (model.Snapshot, Outcome, error) {
	var outcome Outcome
	if itemID == 0 {
		return model.Snapshot{}, outcome, fmt.Errorf("reconstruct: zero item id")
	}
	if day.IsZero() {
		return model.Snapshot{}, outcome, fmt.Errorf("reconstruct item %d: zero day", itemID)
	}

	best, ok := r.BestEdge(edges)
	if !ok {
		outcome.Skip = SkipNoBestMatch
		return model.Snapshot{}, outcome, nil
	}

	day = model.DayOf(day)
	asOf := model.AsOf(day)
	snap := model.Snapshot{
		Scope:      r.scope.Name,
		Date:       day,
		ItemID:     itemID,
		CategoryID: best,
		MaintType:  r.MaintType(edges),
	}
	if cat, ok := r.catalog.Category(best); ok {
		snap.Project = cat.Name
	}

	var err error
	if snap.Status, _, err = r.store.LatestAttributeValue(ctx, itemID, model.AttrStatus, asOf); err != nil {
		return model.Snapshot{}, outcome, fmt.Errorf("status of item %d: %w", itemID, err)
	}
	if snap.Priority, _, err = r.store.LatestAttributeValue(ctx, itemID, model.AttrPriority, asOf); err != nil {
		return model.Snapshot{}, outcome, fmt.Errorf("priority of item %d: %w", itemID, err)
	}
	if snap.Points, err = r.points(ctx, itemID, asOf, &outcome); err != nil {
		return model.Snapshot{}, outcome, err
	}
	if snap.Column, err = r.column(ctx, itemID, best, asOf, &outcome); err != nil {
		return model.Snapshot{}, outcome, err
	}

	if len(outcome.Warnings) > 0 {
		slog.Debug("reconstructed with warnings",
			"scope", r.scope.Name,
			"date", model.FormatDay(day),
			"item", itemID,
			"warnings", outcome.Warnings)
	}
	return snap, outcome, nil
}

// points follows the fallback chain: latest points event, ingest-time
// points, scope default.
func (r *Reconstructor) points(ctx context.Context, itemID int64, asOf time.Time, outcome *Outcome) (int, error) {
	n, ok, err := r.explicitPoints(ctx, itemID, asOf, outcome)
	if err != nil {
		return 0, err
	}
	if ok {
		return n, nil
	}
	return r.scope.DefaultPoints, nil
}

// explicitPoints returns the item's own points; ok is false when only the
// scope default applies.
func (r *Reconstructor) explicitPoints(ctx context.Context, itemID int64, asOf time.Time, outcome *Outcome) (int, bool, error) {
	raw, ok, err := r.store.LatestAttributeValue(ctx, itemID, model.AttrPoints, asOf)
	if err != nil {
		return 0, false, fmt.Errorf("points of item %d: %w", itemID, err)
	}
	if ok {
		if n, parsed := parsePoints(raw, outcome); parsed {
			return n, true, nil
		}
	}

	item, err := r.item(ctx, itemID)
	if err != nil {
		return 0, false, fmt.Errorf("item %d: %w", itemID, err)
	}
	n, parsed := parsePoints(item.PointsAtIngest, outcome)
	return n, parsed, nil
}

// Pointed reports whether the item has points of its own on day, from a
// points event or from the ingest record.
func (r *Reconstructor) Pointed(ctx context.Context, itemID int64, day time.Time) (bool, error) {
	var outcome Outcome
	_, ok, err := r.explicitPoints(ctx, itemID, model.AsOf(model.DayOf(day)), &outcome)
	return ok, err
}

func parsePoints(raw string, outcome *Outcome) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		outcome.warn(WarnMalformedPoints)
		return 0, false
	}
	return n, true
}

// column resolves the item's column on the board of category.
func (r *Reconstructor) column(ctx context.Context, itemID, category int64, asOf time.Time, outcome *Outcome) (string, error) {
	raw, ok, err := r.store.LatestAttributeValue(ctx, itemID, model.AttrColumns, asOf)
	if err != nil {
		return "", fmt.Errorf("columns of item %d: %w", itemID, err)
	}
	if !ok {
		return "", nil
	}

	placements, err := model.DecodeColumnPlacements(raw)
	if err != nil {
		outcome.warn(WarnMalformedColumns)
		return "", nil
	}

	cat, ok := r.catalog.Category(category)
	if !ok || cat.BoardID == "" {
		return "", nil
	}
	for _, p := range placements {
		if p.BoardID != cat.BoardID {
			continue
		}
		col, ok := r.catalog.Columns[p.ColumnID]
		if !ok {
			outcome.warn(WarnUnknownColumn)
			return "", nil
		}
		return col.Name, nil
	}
	return "", nil
}
