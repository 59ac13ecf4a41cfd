package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayHelpers(t *testing.T) {
	ts := time.Date(2024, 3, 15, 23, 59, 59, 0, time.FixedZone("PDT", -7*3600))

	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), DayOf(ts))
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), AsOf(ts))
	assert.Equal(t, "2024-03-16", FormatDay(ts))

	d, err := ParseDay("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDay("01/01/2024")
	assert.Error(t, err)

	assert.Len(t, Days(d, d.AddDate(0, 0, 2)), 3)
	assert.Empty(t, Days(d, d.AddDate(0, 0, -1)))
}

func TestStartOfQuarter(t *testing.T) {
	tests := []struct {
		day  string
		want string
	}{
		{"2024-01-01", "2024-01-01"},
		{"2024-03-31", "2024-01-01"},
		{"2024-04-01", "2024-04-01"},
		{"2024-08-15", "2024-07-01"},
		{"2024-12-31", "2024-10-01"},
	}
	for _, tt := range tests {
		d, err := ParseDay(tt.day)
		require.NoError(t, err)
		assert.Equal(t, tt.want, FormatDay(StartOfQuarter(d)), tt.day)
	}
}

func TestEdgeSet(t *testing.T) {
	s := NewEdgeSet(3, 1, 2)
	assert.True(t, s.Has(1))
	assert.False(t, s.Has(4))
	assert.True(t, s.HasAll([]int64{1, 3}))
	assert.False(t, s.HasAll([]int64{1, 4}))
	assert.Equal(t, []int64{1, 2, 3}, s.Sorted())
	assert.True(t, NewEdgeSet(1, 2).SubsetOf(s))
	assert.False(t, NewEdgeSet(1, 9).SubsetOf(s))

	s.Add(9)
	assert.True(t, s.Has(9))
}

func TestParseRuleKind(t *testing.T) {
	tests := []struct {
		input   string
		want    RuleKind
		wantErr bool
	}{
		{input: "ByID", want: RuleByID},
		{input: "ProjectByID", want: RuleByID},
		{input: "projectbyname", want: RuleByName},
		{input: "ProjectsByWildcard", want: RuleByWildcard},
		{input: "Intersection", want: RuleIntersection},
		{input: "ProjectColumn", want: RuleByColumn},
		{input: "ParentTask", want: RuleByParentClosure},
		{input: " ByParentClosure ", want: RuleByParentClosure},
		{input: "ByMood", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRuleKind(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownRuleKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, RuleIntersection.IsFlat())
	assert.False(t, RuleByParentClosure.IsFlat())
}

func TestDecodeColumnPlacements(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []ColumnPlacement
		wantErr bool
	}{
		{
			name:    "array",
			payload: `[{"boardPHID":"PHID-PROJ-a","columnPHID":"PHID-PCOL-1"},{"boardPHID":"PHID-PROJ-b","columnPHID":"PHID-PCOL-2"}]`,
			want: []ColumnPlacement{
				{BoardID: "PHID-PROJ-a", ColumnID: "PHID-PCOL-1"},
				{BoardID: "PHID-PROJ-b", ColumnID: "PHID-PCOL-2"},
			},
		},
		{
			name:    "single object",
			payload: `{"boardPHID":"PHID-PROJ-a","columnPHID":"PHID-PCOL-1","beforePHID":"x"}`,
			want:    []ColumnPlacement{{BoardID: "PHID-PROJ-a", ColumnID: "PHID-PCOL-1", BeforeID: "x"}},
		},
		{name: "empty", payload: "  ", wantErr: true},
		{name: "scalar", payload: `"PHID-PCOL-1"`, wantErr: true},
		{name: "unknown field", payload: `[{"boardPHID":"a","columnPHID":"b","color":"red"}]`, wantErr: true},
		{name: "missing column", payload: `[{"boardPHID":"a"}]`, wantErr: true},
		{name: "trailing data", payload: `[] []`, wantErr: true},
		{name: "broken json", payload: `[{"boardPHID":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeColumnPlacements(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedColumns)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
