package rules

import "github.com/Veraticus/burnup/internal/model"

// ApplyRetroactive rewrites every row of an item with the category and/or
// points the item has on its latest date in rows.
func ApplyRetroactive(rows []model.ReportRow, categories, points bool) []model.ReportRow {
	if !categories && !points {
		return rows
	}

	latest := make(map[int64]model.ReportRow)
	for _, row := range rows {
		cur, ok := latest[row.ItemID]
		if !ok || row.Date.After(cur.Date) {
			latest[row.ItemID] = row
		}
	}

	out := make([]model.ReportRow, len(rows))
	for i, row := range rows {
		last := latest[row.ItemID]
		if categories {
			row.Category = last.Category
			row.RuleOrder = last.RuleOrder
			row.Display = last.Display
			row.IncludeInStatus = last.IncludeInStatus
		}
		if points {
			row.Points = last.Points
		}
		out[i] = row
	}
	return out
}
