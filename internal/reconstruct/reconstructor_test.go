package reconstruct

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/burnup/internal/config"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/testutil"
)

const (
	projA    = int64(10)
	projB    = int64(20)
	tagNew   = int64(90)
	tagMaint = int64(91)
	boardA   = "PHID-PROJ-A"
	boardB   = "PHID-PROJ-B"
)

func testScope() *config.Scope {
	return &config.Scope{
		Name:          "s",
		Projects:      []int64{projA, projB},
		DefaultPoints: 5,
		Tags:          config.Tags{NewFunctionality: tagNew, Maintenance: tagMaint},
	}
}

func setup(t *testing.T, log *testutil.LogBuilder) *Reconstructor {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log.
		Category(projA, "Alpha", boardA).
		Category(projB, "Beta", boardB).
		Category(tagNew, "New", "").
		Category(tagMaint, "Maint", "").
		Column("PHID-PCOL-A1", "Backlog", boardA).
		Column("PHID-PCOL-A2", "Doing", boardA).
		Column("PHID-PCOL-B1", "Inbox", boardB).
		Load(db)

	ctx := context.Background()
	cats, err := db.Storage.GetCategories(ctx)
	require.NoError(t, err)
	cols, err := db.Storage.GetColumns(ctx)
	require.NoError(t, err)
	return New(db.Storage, testScope(), model.NewCatalog(cats, cols))
}

func TestReconstruct_PointsFallback(t *testing.T) {
	log := testutil.NewLog(t).
		ItemWithPoints(1, "has event", "3").
		ItemWithPoints(2, "ingest only", "8").
		Item(3, "nothing").
		ItemWithPoints(4, "garbage event", "2").
		Points(1, "2024-01-01T10:00", "13").
		Points(4, "2024-01-01T10:00", "lots")
	r := setup(t, log)
	ctx := context.Background()
	day := testutil.Day(t, "2024-01-02")
	edges := model.NewEdgeSet(projA)

	tests := []struct {
		name     string
		item     int64
		want     int
		warnings []Warning
	}{
		{name: "latest points event", item: 1, want: 13},
		{name: "points at ingest", item: 2, want: 8},
		{name: "scope default", item: 3, want: 5},
		{name: "malformed event falls back", item: 4, want: 2, warnings: []Warning{WarnMalformedPoints}},
		{name: "unknown item uses default", item: 77, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, outcome, err := r.Reconstruct(ctx, tt.item, day, edges)
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Points)
			assert.Equal(t, tt.warnings, outcome.Warnings)
		})
	}
}

func TestPointed(t *testing.T) {
	log := testutil.NewLog(t).
		ItemWithPoints(1, "ingest", "3").
		Item(2, "event later").
		Item(3, "nothing").
		Points(2, "2024-01-03T10:00", "8").
		Points(3, "2024-01-01T10:00", "?")
	r := setup(t, log)
	ctx := context.Background()

	for _, tc := range []struct {
		item int64
		day  string
		want bool
	}{
		{item: 1, day: "2024-01-01", want: true},
		{item: 2, day: "2024-01-02", want: false},
		{item: 2, day: "2024-01-03", want: true},
		{item: 3, day: "2024-01-05", want: false},
	} {
		got, err := r.Pointed(ctx, tc.item, testutil.Day(t, tc.day))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "item %d on %s", tc.item, tc.day)
	}
}

func TestReconstruct_LatestValueTieBreak(t *testing.T) {
	log := testutil.NewLog(t).
		Item(1, "tie").
		Status(1, "2024-01-01T10:00", "open").
		Status(1, "2024-01-01T10:00", "resolved").
		Priority(1, "2024-01-01T09:00", "high").
		Status(1, "2024-01-02T00:00", "reopened")
	r := setup(t, log)

	snap, outcome, err := r.Reconstruct(context.Background(), 1, testutil.Day(t, "2024-01-01"), model.NewEdgeSet(projA))
	require.NoError(t, err)
	assert.False(t, outcome.Skipped())
	assert.Equal(t, "resolved", snap.Status)
	assert.Equal(t, "high", snap.Priority)
	assert.Equal(t, "s", snap.Scope)
	assert.Equal(t, testutil.Day(t, "2024-01-01"), snap.Date)
}

func TestReconstruct_BestEdge(t *testing.T) {
	r := setup(t, testutil.NewLog(t).Item(1, "x"))
	ctx := context.Background()
	day := testutil.Day(t, "2024-01-01")

	snap, _, err := r.Reconstruct(ctx, 1, day, model.NewEdgeSet(projB, projA, tagNew))
	require.NoError(t, err)
	assert.Equal(t, projA, snap.CategoryID)
	assert.Equal(t, "Alpha", snap.Project)
	assert.Equal(t, model.MaintTypeNew, snap.MaintType)

	snap, _, err = r.Reconstruct(ctx, 1, day, model.NewEdgeSet(projB, tagMaint))
	require.NoError(t, err)
	assert.Equal(t, projB, snap.CategoryID)
	assert.Equal(t, model.MaintTypeMaintenance, snap.MaintType)

	_, outcome, err := r.Reconstruct(ctx, 1, day, model.NewEdgeSet(tagNew, 555))
	require.NoError(t, err)
	assert.True(t, outcome.Skipped())
	assert.Equal(t, SkipNoBestMatch, outcome.Skip)
}

func TestReconstruct_BothMaintTagsPreferNew(t *testing.T) {
	r := setup(t, testutil.NewLog(t).Item(1, "x"))
	snap, _, err := r.Reconstruct(context.Background(), 1, testutil.Day(t, "2024-01-01"), model.NewEdgeSet(projA, tagNew, tagMaint))
	require.NoError(t, err)
	assert.Equal(t, model.MaintTypeNew, snap.MaintType)
}

func TestReconstruct_Column(t *testing.T) {
	log := testutil.NewLog(t).
		Item(1, "moved").
		Item(2, "other board").
		Item(3, "garbage").
		Item(4, "unknown column").
		Move(1, "2024-01-01T08:00", boardA, "PHID-PCOL-A1").
		Move(1, "2024-01-03T08:00", boardA, "PHID-PCOL-A2").
		Move(2, "2024-01-01T08:00", boardB, "PHID-PCOL-B1").
		Set(3, "2024-01-01T08:00", model.AttrColumns, `{"boardPHID": "x", "columnPHID": "y", "colour": 1}`).
		Move(4, "2024-01-01T08:00", boardA, "PHID-PCOL-ZZ")
	r := setup(t, log)
	ctx := context.Background()
	edges := model.NewEdgeSet(projA)

	tests := []struct {
		name     string
		day      string
		want     string
		warnings []Warning
		item     int64
	}{
		{name: "first placement", item: 1, day: "2024-01-02", want: "Backlog"},
		{name: "latest placement", item: 1, day: "2024-01-03", want: "Doing"},
		{name: "before any placement", item: 1, day: "2023-12-31", want: ""},
		{name: "placement on another board", item: 2, day: "2024-01-02", want: ""},
		{name: "malformed payload", item: 3, day: "2024-01-02", want: "", warnings: []Warning{WarnMalformedColumns}},
		{name: "unknown column id", item: 4, day: "2024-01-02", want: "", warnings: []Warning{WarnUnknownColumn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, outcome, err := r.Reconstruct(ctx, tt.item, testutil.Day(t, tt.day), edges)
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Column)
			assert.Equal(t, tt.warnings, outcome.Warnings)
		})
	}
}

func TestReconstruct_InvalidInput(t *testing.T) {
	r := setup(t, testutil.NewLog(t))
	ctx := context.Background()

	_, _, err := r.Reconstruct(ctx, 0, testutil.Day(t, "2024-01-01"), model.NewEdgeSet(projA))
	assert.Error(t, err)

	_, _, err = r.Reconstruct(ctx, 1, time.Time{}, model.NewEdgeSet(projA))
	assert.Error(t, err)
}

func TestPreload(t *testing.T) {
	r := setup(t, testutil.NewLog(t).ItemWithPoints(1, "x", "8"))
	require.NoError(t, r.Preload(context.Background(), []int64{1, 2}))

	snap, _, err := r.Reconstruct(context.Background(), 1, testutil.Day(t, "2024-01-01"), model.NewEdgeSet(projA))
	require.NoError(t, err)
	assert.Equal(t, 8, snap.Points)
}
