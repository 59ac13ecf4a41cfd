package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/burnup/internal/model"
)

// TimeLayout is the fixture timestamp format, always UTC.
const TimeLayout = "2006-01-02T15:04"

// Day parses a YYYY-MM-DD fixture day or fails the test.
func Day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDay(s)
	if err != nil {
		t.Fatalf("bad fixture day: %v", err)
	}
	return d
}

// At parses a fixture timestamp. A bare day means midnight.
func At(t *testing.T, s string) time.Time {
	t.Helper()
	if len(s) == len(model.DayLayout) {
		return Day(t, s)
	}
	ts, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		t.Fatalf("bad fixture timestamp: %v", err)
	}
	return ts
}

var eventSeq atomic.Int64

// LogBuilder accumulates an event log and loads it in one go. Events keep
// the order in which they were added, which is also their insertion order.
type LogBuilder struct {
	t            *testing.T
	items        []model.Item
	categories   []model.Category
	columns      []model.Column
	transactions []model.TransactionEvent
	edges        []model.EdgeEvent
	links        []model.LinkEvent
}

// NewLog starts an empty event log.
func NewLog(t *testing.T) *LogBuilder {
	t.Helper()
	return &LogBuilder{t: t}
}

// Category adds a project or tag.
func (b *LogBuilder) Category(id int64, name, boardID string) *LogBuilder {
	b.categories = append(b.categories, model.Category{ID: id, Name: name, BoardID: boardID})
	return b
}

// Column adds a workboard column.
func (b *LogBuilder) Column(id, name, boardID string) *LogBuilder {
	b.columns = append(b.columns, model.Column{ID: id, Name: name, BoardID: boardID})
	return b
}

// Item adds an item with no ingest-time points.
func (b *LogBuilder) Item(id int64, title string) *LogBuilder {
	return b.ItemWithPoints(id, title, "")
}

// ItemWithPoints adds an item whose ingest-time points field is points.
func (b *LogBuilder) ItemWithPoints(id int64, title, points string) *LogBuilder {
	b.items = append(b.items, model.Item{ID: id, Title: title, PointsAtIngest: points})
	return b
}

// Set appends an attribute change.
func (b *LogBuilder) Set(itemID int64, when, attribute, value string) *LogBuilder {
	b.transactions = append(b.transactions, model.TransactionEvent{
		ID:        fmt.Sprintf("PHID-XACT-%d", eventSeq.Add(1)),
		ItemID:    itemID,
		Attribute: attribute,
		NewValue:  value,
		Timestamp: At(b.t, when),
	})
	return b
}

// Status appends a status change.
func (b *LogBuilder) Status(itemID int64, when, value string) *LogBuilder {
	return b.Set(itemID, when, model.AttrStatus, value)
}

// Points appends a points change.
func (b *LogBuilder) Points(itemID int64, when, value string) *LogBuilder {
	return b.Set(itemID, when, model.AttrPoints, value)
}

// Priority appends a priority change.
func (b *LogBuilder) Priority(itemID int64, when, value string) *LogBuilder {
	return b.Set(itemID, when, model.AttrPriority, value)
}

// Move appends a column placement of the item on one board.
func (b *LogBuilder) Move(itemID int64, when, boardID, columnID string) *LogBuilder {
	payload := fmt.Sprintf(`[{"boardPHID":%q,"columnPHID":%q}]`, boardID, columnID)
	return b.Set(itemID, when, model.AttrColumns, payload)
}

// Edge appends a membership of item in category.
func (b *LogBuilder) Edge(itemID, categoryID int64, when string) *LogBuilder {
	b.edges = append(b.edges, model.EdgeEvent{ItemID: itemID, CategoryID: categoryID, ObservedAt: At(b.t, when)})
	return b
}

// Link appends a parent/child relation.
func (b *LogBuilder) Link(parentID, childID int64, when string) *LogBuilder {
	b.links = append(b.links, model.LinkEvent{ParentID: parentID, ChildID: childID, ObservedAt: At(b.t, when)})
	return b
}

// Load writes the log into db or fails the test.
func (b *LogBuilder) Load(db *TestDB) *LogBuilder {
	b.t.Helper()
	ctx := context.Background()
	s := db.Storage

	steps := []struct {
		name string
		run  func() error
	}{
		{"items", func() error { return s.SaveItems(ctx, b.items) }},
		{"categories", func() error { return s.SaveCategories(ctx, b.categories) }},
		{"columns", func() error { return s.SaveColumns(ctx, b.columns) }},
		{"transactions", func() error { return s.AppendTransactionEvents(ctx, b.transactions) }},
		{"edges", func() error { return s.AppendEdgeEvents(ctx, b.edges) }},
		{"links", func() error { return s.AppendLinkEvents(ctx, b.links) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			b.t.Fatalf("failed to load %s: %v", step.name, err)
		}
	}
	return b
}
