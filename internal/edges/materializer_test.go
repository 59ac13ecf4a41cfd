package edges

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/testutil"
)

func TestMaterializer_ActiveEdges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.NewLog(t).
		Edge(1, 10, "2024-01-01T08:00").
		Edge(1, 20, "2024-01-03T08:00").
		Edge(2, 20, "2024-01-02T23:59").
		Edge(3, 99, "2024-01-01T08:00").
		Load(db)

	m := NewMaterializer(db.Storage)
	ctx := context.Background()
	categories := []int64{10, 20}

	day1, err := m.ActiveEdges(ctx, categories, testutil.Day(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, map[int64]model.EdgeSet{1: model.NewEdgeSet(10)}, day1)

	day2, err := m.ActiveEdges(ctx, categories, testutil.Day(t, "2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, map[int64]model.EdgeSet{
		1: model.NewEdgeSet(10),
		2: model.NewEdgeSet(20),
	}, day2)

	day3, err := m.ActiveEdges(ctx, categories, testutil.Day(t, "2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, day3[1].Sorted())
}

func TestMaterializer_Monotonic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.NewLog(t).
		Edge(1, 10, "2024-01-01T08:00").
		Edge(1, 20, "2024-01-04T08:00").
		Edge(2, 10, "2024-01-02T08:00").
		Edge(2, 30, "2024-01-05T08:00").
		Load(db)

	m := NewMaterializer(db.Storage)
	ctx := context.Background()
	categories := []int64{10, 20, 30}

	var previous map[int64]model.EdgeSet
	for _, day := range model.Days(testutil.Day(t, "2023-12-30"), testutil.Day(t, "2024-01-07")) {
		current, err := m.ActiveEdges(ctx, categories, day)
		require.NoError(t, err)
		for item, set := range previous {
			require.Contains(t, current, item, "item %d vanished on %s", item, model.FormatDay(day))
			assert.True(t, set.SubsetOf(current[item]), "edges of %d shrank on %s", item, model.FormatDay(day))
		}
		previous = current
	}
}

func TestMaterializer_ForItemAndMembers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.NewLog(t).
		Edge(1, 10, "2024-01-01T08:00").
		Edge(2, 10, "2024-01-02T08:00").
		Load(db)

	m := NewMaterializer(db.Storage)
	ctx := context.Background()

	set, err := m.ForItem(ctx, 2, []int64{10}, testutil.Day(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Empty(t, set)

	set, err = m.ForItem(ctx, 2, []int64{10, 20}, testutil.Day(t, "2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, set.Sorted())

	members, err := m.Members(ctx, 10, testutil.Day(t, "2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, members)

	members, err = m.Members(ctx, 10, testutil.Day(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, members)
}

func TestMaterializer_ZeroDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	m := NewMaterializer(db.Storage)

	_, err := m.ActiveEdges(context.Background(), []int64{1}, time.Time{})
	assert.Error(t, err)

	_, err = m.ForItem(context.Background(), 1, []int64{1}, time.Time{})
	assert.Error(t, err)

	_, err = m.Members(context.Background(), 1, time.Time{})
	assert.Error(t, err)
}
