package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	return createTestStorageWithDriver(t, DriverCGo)
}

func createTestStorageWithDriver(t *testing.T, driver string) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorageWithDriver(driver, dbPath)
	require.NoError(t, err)

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func at(day string, hour int) time.Time {
	d, err := model.ParseDay(day)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func TestNewSQLiteStorage_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteStorageWithDriver("postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNewSQLiteStorage_BothDrivers(t *testing.T) {
	for _, driver := range []string{DriverCGo, DriverPure} {
		t.Run(driver, func(t *testing.T) {
			store, cleanup := createTestStorageWithDriver(t, driver)
			defer cleanup()
			ctx := context.Background()

			assert.Equal(t, driver, store.Driver())
			require.NoError(t, store.AppendTransactionEvents(ctx, []model.TransactionEvent{
				{ID: "t1", ItemID: 1, Attribute: model.AttrStatus, NewValue: "open", Timestamp: at("2024-01-01", 3)},
			}))

			value, ok, err := store.LatestAttributeValue(ctx, 1, model.AttrStatus, model.AsOf(at("2024-01-01", 0)))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "open", value)
		})
	}
}

func TestLatestAttributeValue(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.AppendTransactionEvents(ctx, []model.TransactionEvent{
		{ID: "a", ItemID: 1, Attribute: model.AttrStatus, NewValue: "open", Timestamp: at("2024-01-01", 9)},
		{ID: "b", ItemID: 1, Attribute: model.AttrStatus, NewValue: "stalled", Timestamp: at("2024-01-03", 9)},
		// same timestamp: insertion order decides
		{ID: "c", ItemID: 1, Attribute: model.AttrStatus, NewValue: "resolved", Timestamp: at("2024-01-03", 9)},
		{ID: "d", ItemID: 1, Attribute: model.AttrPoints, NewValue: "8", Timestamp: at("2024-01-02", 0)},
	}))

	tests := []struct {
		name      string
		attribute string
		day       string
		want      string
		wantOK    bool
	}{
		{name: "before any event", attribute: model.AttrStatus, day: "2023-12-31", wantOK: false},
		{name: "first day", attribute: model.AttrStatus, day: "2024-01-01", want: "open", wantOK: true},
		{name: "no change yet", attribute: model.AttrStatus, day: "2024-01-02", want: "open", wantOK: true},
		{name: "tie broken by sequence", attribute: model.AttrStatus, day: "2024-01-03", want: "resolved", wantOK: true},
		{name: "event at midnight belongs to that day", attribute: model.AttrPoints, day: "2024-01-02", want: "8", wantOK: true},
		{name: "other attribute absent", attribute: model.AttrPriority, day: "2024-02-01", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok, err := store.LatestAttributeValue(ctx, 1, tt.attribute, model.AsOf(at(tt.day, 0)))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestAppendTransactionEvents_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	events := []model.TransactionEvent{
		{ID: "a", ItemID: 1, Attribute: model.AttrStatus, NewValue: "open", Timestamp: at("2024-01-01", 9)},
		{ID: "b", ItemID: 1, Attribute: model.AttrStatus, NewValue: "resolved", Timestamp: at("2024-01-02", 9)},
	}
	require.NoError(t, store.AppendTransactionEvents(ctx, events))
	require.NoError(t, store.AppendTransactionEvents(ctx, events))

	stored, err := store.TransactionEvents(ctx, 1, model.AttrStatus)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "open", stored[0].NewValue)
	assert.Equal(t, "resolved", stored[1].NewValue)
	assert.Less(t, stored[0].Seq, stored[1].Seq)
}

func TestAppendTransactionEvents_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.AppendTransactionEvents(context.Background(), []model.TransactionEvent{
		{ID: "a", ItemID: 1, Attribute: model.AttrStatus},
	})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestEdges(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.AppendEdgeEvents(ctx, []model.EdgeEvent{
		{ItemID: 1, CategoryID: 10, ObservedAt: at("2024-01-01", 5)},
		{ItemID: 1, CategoryID: 20, ObservedAt: at("2024-01-03", 5)},
		{ItemID: 2, CategoryID: 10, ObservedAt: at("2024-01-02", 5)},
		{ItemID: 3, CategoryID: 30, ObservedAt: at("2024-01-01", 5)},
	}))

	asOf := model.AsOf(at("2024-01-02", 0))

	set, err := store.ActiveEdgeSet(ctx, 1, []int64{10, 20}, asOf)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, set.Sorted())

	later, err := store.ActiveEdgeSet(ctx, 1, []int64{10, 20}, model.AsOf(at("2024-01-05", 0)))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, later.Sorted())
	assert.True(t, set.SubsetOf(later))

	members, err := store.AllItemsWithEdge(ctx, 10, asOf)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, members)

	all, err := store.ActiveEdges(ctx, []int64{10, 20}, asOf)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.NotContains(t, all, int64(3))

	empty, err := store.ActiveEdgeSet(ctx, 1, nil, asOf)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestChildLinks(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.AppendLinkEvents(ctx, []model.LinkEvent{
		{ParentID: 1, ChildID: 2, ObservedAt: at("2024-01-01", 1)},
		{ParentID: 2, ChildID: 3, ObservedAt: at("2024-01-04", 1)},
	}))

	links, err := store.ChildLinks(ctx, model.AsOf(at("2024-01-02", 0)))
	require.NoError(t, err)
	assert.Equal(t, map[int64][]int64{1: {2}}, links)

	err = store.AppendLinkEvents(ctx, []model.LinkEvent{{ParentID: 4, ChildID: 4, ObservedAt: at("2024-01-01", 1)}})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestEarliestEventDate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.EarliestEventDate(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.AppendTransactionEvents(ctx, []model.TransactionEvent{
		{ID: "a", ItemID: 1, Attribute: model.AttrStatus, NewValue: "open", Timestamp: at("2024-01-05", 9)},
	}))
	require.NoError(t, store.AppendEdgeEvents(ctx, []model.EdgeEvent{
		{ItemID: 1, CategoryID: 10, ObservedAt: at("2024-01-03", 22)},
	}))

	day, err := store.EarliestEventDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, at("2024-01-03", 0), day)
}

func TestCatalog(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveItems(ctx, []model.Item{
		{ID: 1, Title: "first", PointsAtIngest: "3"},
		{ID: 2, Title: "second"},
	}))
	require.NoError(t, store.SaveItems(ctx, []model.Item{{ID: 1, Title: "renamed", PointsAtIngest: "3"}}))
	require.NoError(t, store.SaveCategories(ctx, []model.Category{
		{ID: 20, Name: "Tag"},
		{ID: 10, Name: "Project", BoardID: "PHID-PROJ-1"},
	}))
	require.NoError(t, store.SaveColumns(ctx, []model.Column{{ID: "PHID-PCOL-1", Name: "Doing", BoardID: "PHID-PROJ-1"}}))

	item, err := store.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "renamed", item.Title)

	_, err = store.GetItem(ctx, 99)
	assert.ErrorIs(t, err, common.ErrNotFound)

	items, err := store.GetItems(ctx, []int64{1, 2, 99})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	cats, err := store.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Project", cats[0].Name)

	cols, err := store.GetColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Column{{ID: "PHID-PCOL-1", Name: "Doing", BoardID: "PHID-PROJ-1"}}, cols)
}

func snapshotRow(scope, day string, item int64, status string) model.Snapshot {
	return model.Snapshot{
		Scope:      scope,
		Date:       at(day, 0),
		ItemID:     item,
		Status:     status,
		CategoryID: 10,
		Project:    "Project",
		Points:     5,
		MaintType:  model.MaintTypeNew,
	}
}

func TestWriteSnapshot_NeverOverwrites(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	day := at("2024-01-01", 0)
	require.NoError(t, store.WriteSnapshot(ctx, "s", day, []model.Snapshot{snapshotRow("s", "2024-01-01", 1, "open")}))

	err := store.WriteSnapshot(ctx, "s", day, []model.Snapshot{snapshotRow("s", "2024-01-01", 1, "resolved")})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	rows, err := store.Snapshots(ctx, "s", day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "open", rows[0].Status)

	maxDay, ok, err := store.MaxDate(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day, maxDay)

	_, ok, err = store.MaxDate(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteSnapshot_RejectsForeignRows(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.WriteSnapshot(context.Background(), "s", at("2024-01-02", 0),
		[]model.Snapshot{snapshotRow("s", "2024-01-01", 1, "open")})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestRebuild_CommitReplacesScope(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.WriteSnapshot(ctx, "s", at("2024-01-01", 0), []model.Snapshot{snapshotRow("s", "2024-01-01", 1, "open")}))
	require.NoError(t, store.WriteSnapshot(ctx, "other", at("2024-01-01", 0), []model.Snapshot{snapshotRow("other", "2024-01-01", 1, "open")}))

	rebuild, err := store.BeginRebuild(ctx, "s", "run-1")
	require.NoError(t, err)
	require.NoError(t, rebuild.WriteSnapshot(ctx, "s", at("2024-01-02", 0), []model.Snapshot{snapshotRow("s", "2024-01-02", 2, "resolved")}))

	// staged rows stay invisible until commit
	rows, err := store.Snapshots(ctx, "s", at("2024-01-01", 0), at("2024-01-31", 0))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ItemID)

	require.NoError(t, rebuild.Commit(ctx))

	rows, err = store.Snapshots(ctx, "s", at("2024-01-01", 0), at("2024-01-31", 0))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ItemID)

	others, err := store.Snapshots(ctx, "other", at("2024-01-01", 0), at("2024-01-31", 0))
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestRebuild_CommitDropsDerivedRows(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	day := at("2024-01-01", 0)
	row := model.ReportRow{Snapshot: snapshotRow("s", "2024-01-01", 1, "open"), Category: "Alpha", RuleOrder: 1}
	agg := model.AggregateRow{Scope: "s", Range: model.RangeNormal, Date: day, Category: "Alpha", Status: "open", MaintType: model.MaintTypeNew, PointsSum: 5, Count: 1}
	require.NoError(t, store.WriteSnapshot(ctx, "s", day, []model.Snapshot{row.Snapshot}))
	require.NoError(t, store.ReplaceReport(ctx, "s", []model.ReportRow{row}, []model.AggregateRow{agg}))

	otherRow := row
	otherRow.Scope = "other"
	otherAgg := agg
	otherAgg.Scope = "other"
	require.NoError(t, store.ReplaceReport(ctx, "other", []model.ReportRow{otherRow}, []model.AggregateRow{otherAgg}))

	rebuild, err := store.BeginRebuild(ctx, "s", "run-1")
	require.NoError(t, err)
	require.NoError(t, rebuild.WriteSnapshot(ctx, "s", day, []model.Snapshot{snapshotRow("s", "2024-01-01", 2, "open")}))
	require.NoError(t, rebuild.Commit(ctx))

	rows, err := store.ReportRows(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, rows)
	aggs, err := store.Aggregates(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, aggs)
	_, ok, err := store.MaxReportDate(ctx, "s")
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err = store.ReportRows(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	aggs, err = store.Aggregates(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, aggs, 1)
}

func TestRebuild_AbortKeepsLiveRows(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.WriteSnapshot(ctx, "s", at("2024-01-01", 0), []model.Snapshot{snapshotRow("s", "2024-01-01", 1, "open")}))

	rebuild, err := store.BeginRebuild(ctx, "s", "run-1")
	require.NoError(t, err)
	require.NoError(t, rebuild.WriteSnapshot(ctx, "s", at("2024-01-01", 0), []model.Snapshot{snapshotRow("s", "2024-01-01", 9, "open")}))
	require.NoError(t, rebuild.Abort(ctx))

	rows, err := store.Snapshots(ctx, "s", at("2024-01-01", 0), at("2024-01-01", 0))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].ItemID)

	var staged int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_on_date_staging`).Scan(&staged))
	assert.Zero(t, staged)
}

func TestResolvedItemsOn(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	day := at("2024-01-01", 0)
	require.NoError(t, store.WriteSnapshot(ctx, "s", day, []model.Snapshot{
		snapshotRow("s", "2024-01-01", 1, "open"),
		snapshotRow("s", "2024-01-01", 2, "resolved"),
	}))

	resolved, err := store.ResolvedItemsOn(ctx, "s", day, "resolved")
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{2: true}, resolved)
}

func TestReports(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	row := model.ReportRow{Snapshot: snapshotRow("s", "2024-01-01", 1, "open"), Category: "Alpha", RuleOrder: 1, Display: true, IncludeInStatus: true}
	agg := model.AggregateRow{Scope: "s", Range: model.RangeNormal, Date: at("2024-01-01", 0), Category: "Alpha", Status: "open", MaintType: model.MaintTypeNew, PointsSum: 5, Count: 1, Display: true}

	require.NoError(t, store.ReplaceReport(ctx, "s", []model.ReportRow{row}, []model.AggregateRow{agg}))

	err := store.AppendReport(ctx, "s", []model.ReportRow{row}, nil)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	next := row
	next.Date = at("2024-01-02", 0)
	next.Display = false
	nextAgg := agg
	nextAgg.Date = next.Date
	nextAgg.Display = false
	require.NoError(t, store.AppendReport(ctx, "s", []model.ReportRow{next}, []model.AggregateRow{nextAgg}))

	rows, err := store.ReportRows(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []model.ReportRow{row, next}, rows)

	aggs, err := store.Aggregates(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []model.AggregateRow{agg, nextAgg}, aggs)

	maxDay, ok, err := store.MaxReportDate(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, next.Date, maxDay)

	require.NoError(t, store.ReplaceReport(ctx, "s", []model.ReportRow{row}, nil))
	rows, err = store.ReportRows(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, store.WipeScope(ctx, "s"))
	rows, err = store.ReportRows(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRuns(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.LatestRun(ctx, "s")
	assert.ErrorIs(t, err, common.ErrNotFound)

	run := &service.RunRecord{Scope: "s", Mode: "full", StartedAt: at("2024-01-01", 1)}
	require.NoError(t, store.StartRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, service.RunStatusRunning, run.Status)

	run.Status = service.RunStatusSucceeded
	run.Days = 3
	run.RowsWritten = 12
	run.Skips = map[string]int{"no_best_match": 2}
	run.FinishedAt = at("2024-01-01", 2)
	require.NoError(t, store.FinishRun(ctx, run))

	latest, err := store.LatestRun(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, run, latest)

	err = store.FinishRun(ctx, &service.RunRecord{ID: "missing", Status: service.RunStatusFailed})
	assert.ErrorIs(t, err, common.ErrNotFound)
}
