// Package aggregate rolls categorized snapshot rows into per-day summaries.
package aggregate

import (
	"sort"
	"time"

	"github.com/Veraticus/burnup/internal/model"
)

// LastQuarter returns the lastq reference day of cutoff.
func LastQuarter(cutoff time.Time) time.Time {
	return model.DayOf(cutoff).AddDate(0, 0, -91)
}

// Input is the data of one aggregation run.
type Input struct {
	// ResolvedAtCutoff holds items already resolved on the cutoff day.
	ResolvedAtCutoff map[int64]bool
	// ResolvedAtLastQ holds items already resolved 91 days before the cutoff.
	ResolvedAtLastQ map[int64]bool
	Scope           string
	Rows            []model.ReportRow
	HasCutoff       bool
}

type key struct {
	date      time.Time
	category  string
	status    string
	maintType string
}

// Aggregate groups rows by (date, category, status, maint type) for every
// range. Without a cutoff, cutoff and lastq repeat normal.
func Aggregate(in Input) []model.AggregateRow {
	normal := group(in.Rows, nil)

	var cutoff, lastq map[key]*model.AggregateRow
	if in.HasCutoff {
		cutoff = group(in.Rows, in.ResolvedAtCutoff)
		lastq = group(in.Rows, in.ResolvedAtLastQ)
	} else {
		cutoff, lastq = normal, normal
	}

	var out []model.AggregateRow
	for _, r := range []struct {
		buckets map[key]*model.AggregateRow
		rng     model.Range
	}{
		{normal, model.RangeNormal},
		{cutoff, model.RangeCutoff},
		{lastq, model.RangeLastQ},
	} {
		for _, bucket := range r.buckets {
			row := *bucket
			row.Scope = in.Scope
			row.Range = r.rng
			out = append(out, row)
		}
	}

	Sort(out)
	return out
}

func group(rows []model.ReportRow, exclude map[int64]bool) map[key]*model.AggregateRow {
	buckets := make(map[key]*model.AggregateRow)
	for _, row := range rows {
		if exclude[row.ItemID] {
			continue
		}
		k := key{date: model.DayOf(row.Date), category: row.Category, status: row.Status, maintType: row.MaintType}
		b, ok := buckets[k]
		if !ok {
			b = &model.AggregateRow{Date: k.date, Category: k.category, Status: k.status, MaintType: k.maintType}
			buckets[k] = b
		}
		b.PointsSum += row.Points
		b.Count++
		// a bucket is shown when any rule feeding it is
		b.Display = b.Display || row.Display
	}
	return buckets
}

// Sort orders aggregates by range, date, category, status, maint type.
func Sort(rows []model.AggregateRow) {
	rank := make(map[model.Range]int, len(model.Ranges))
	for i, r := range model.Ranges {
		rank[r] = i
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.Range != b.Range:
			return rank[a.Range] < rank[b.Range]
		case !a.Date.Equal(b.Date):
			return a.Date.Before(b.Date)
		case a.Category != b.Category:
			return a.Category < b.Category
		case a.Status != b.Status:
			return a.Status < b.Status
		default:
			return a.MaintType < b.MaintType
		}
	})
}

// RecentlyClosed counts, per day and category, the items whose status
// changed to resolved since their previous row. Days before start are
// skipped; an item's first row never counts.
func RecentlyClosed(scope string, rows []model.ReportRow, resolved string, start time.Time) []model.ClosedRow {
	byItem := make(map[int64][]model.ReportRow)
	for _, row := range rows {
		byItem[row.ItemID] = append(byItem[row.ItemID], row)
	}

	type closedKey struct {
		date     time.Time
		category string
	}
	buckets := make(map[closedKey]*model.ClosedRow)
	start = model.DayOf(start)

	for _, history := range byItem {
		sort.Slice(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })
		for i := 1; i < len(history); i++ {
			prev, cur := history[i-1], history[i]
			if cur.Status != resolved || prev.Status == resolved || cur.Date.Before(start) {
				continue
			}
			k := closedKey{date: model.DayOf(cur.Date), category: cur.Category}
			b, ok := buckets[k]
			if !ok {
				b = &model.ClosedRow{Scope: scope, Date: k.date, Category: k.category}
				buckets[k] = b
			}
			b.PointsSum += cur.Points
			b.Count++
		}
	}

	out := make([]model.ClosedRow, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Status sums, per category and status, the rows on day whose rule is
// included in the status feed.
func Status(scope string, rows []model.ReportRow, day time.Time) []model.StatusRow {
	type statusKey struct {
		category string
		status   string
	}
	day = model.DayOf(day)
	buckets := make(map[statusKey]*model.StatusRow)
	for _, row := range rows {
		if !row.IncludeInStatus || !model.DayOf(row.Date).Equal(day) {
			continue
		}
		k := statusKey{category: row.Category, status: row.Status}
		b, ok := buckets[k]
		if !ok {
			b = &model.StatusRow{Scope: scope, Date: day, Category: k.category, Status: k.status}
			buckets[k] = b
		}
		b.PointsSum += row.Points
		b.Count++
	}

	out := make([]model.StatusRow, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Status < out[j].Status
	})
	return out
}
