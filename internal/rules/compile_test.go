package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/model"
)

func testCatalog() *model.Catalog {
	return model.NewCatalog([]model.Category{
		{ID: 10, Name: "Analytics-Dashboard", BoardID: "B10"},
		{ID: 20, Name: "Analytics-Backend", BoardID: "B20"},
		{ID: 30, Name: "Search", BoardID: "B30"},
		{ID: 40, Name: "search", BoardID: "B40"},
		{ID: 90, Name: "Epic", BoardID: ""},
	}, nil)
}

func TestCompile(t *testing.T) {
	hidden := false
	rules := []model.CategoryRule{
		{Order: 4, Kind: model.RuleByParentClosure, CategoryIDs: []int64{90}},
		{Order: 1, Kind: model.RuleIntersection, CategoryIDs: []int64{10, 20}},
		{Order: 2, Kind: model.RuleByName, MatchString: "SEARCH", Display: &hidden},
		{Order: 3, Kind: model.RuleByWildcard, MatchString: "analytics", IncludeInStatus: true},
		{Order: 5, Kind: "ProjectColumn", CategoryIDs: []int64{30}, MatchString: "Doing"},
	}

	program, err := Compile("s", rules, testCatalog())
	require.NoError(t, err)

	got := program.Rules()
	want := []Rule{
		{Kind: model.RuleIntersection, IDs: []int64{10, 20}, Title: "Analytics-Dashboard & Analytics-Backend", Order: 1, Display: true},
		{Kind: model.RuleByID, IDs: []int64{30}, Title: "Search", Order: 2},
		{Kind: model.RuleByID, IDs: []int64{10}, Title: "Analytics-Dashboard", Order: 3, Display: true, IncludeInStatus: true},
		{Kind: model.RuleByID, IDs: []int64{20}, Title: "Analytics-Backend", Order: 3, Sub: 1, Display: true, IncludeInStatus: true},
		{Kind: model.RuleByParentClosure, IDs: []int64{90}, Order: 4, Display: true},
		{Kind: model.RuleByColumn, IDs: []int64{30}, Title: "Doing", Match: "doing", Order: 5, Display: true},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, []int64{10, 20, 30, 90}, program.Categories())
	assert.True(t, program.HasClosure())
}

func TestCompile_ByNamePrefersExactCase(t *testing.T) {
	program, err := Compile("s", []model.CategoryRule{
		{Order: 1, Kind: model.RuleByName, MatchString: "search", Title: "Find"},
	}, testCatalog())
	require.NoError(t, err)
	assert.Equal(t, []int64{40}, program.Rules()[0].IDs)
	assert.Equal(t, "Find", program.Rules()[0].Title)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		rule    model.CategoryRule
	}{
		{name: "unknown kind", rule: model.CategoryRule{Kind: "ByMood", CategoryIDs: []int64{10}}, wantErr: ErrUnknownRuleKind},
		{name: "unknown id", rule: model.CategoryRule{Kind: model.RuleByID, CategoryIDs: []int64{777}}, wantErr: ErrUnknownCategory},
		{name: "unknown name", rule: model.CategoryRule{Kind: model.RuleByName, MatchString: "Nope"}, wantErr: ErrUnknownCategory},
		{name: "two ids on ByID", rule: model.CategoryRule{Kind: model.RuleByID, CategoryIDs: []int64{10, 20}}, wantErr: ErrRuleCardinality},
		{name: "two ids on closure", rule: model.CategoryRule{Kind: model.RuleByParentClosure, CategoryIDs: []int64{10, 90}}, wantErr: ErrRuleCardinality},
		{name: "no ids", rule: model.CategoryRule{Kind: model.RuleIntersection}, wantErr: ErrRuleCardinality},
		{name: "ids on ByName", rule: model.CategoryRule{Kind: model.RuleByName, MatchString: "Search", CategoryIDs: []int64{30}}, wantErr: ErrRuleCardinality},
		{name: "column without match", rule: model.CategoryRule{Kind: model.RuleByColumn, CategoryIDs: []int64{30}}, wantErr: ErrMissingMatch},
		{name: "wildcard without pattern", rule: model.CategoryRule{Kind: model.RuleByWildcard}, wantErr: ErrMissingMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("s", []model.CategoryRule{tt.rule}, testCatalog())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestCompile_WildcardWithoutMatches(t *testing.T) {
	program, err := Compile("s", []model.CategoryRule{
		{Order: 1, Kind: model.RuleByWildcard, MatchString: "zzz"},
	}, testCatalog())
	require.NoError(t, err)
	assert.Empty(t, program.Rules())
}
