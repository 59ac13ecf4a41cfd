package model

import "time"

// Maintenance type labels derived from the global tags.
const (
	MaintTypeNew         = "New Functionality"
	MaintTypeMaintenance = "Maintenance"
)

// Range distinguishes the comparison datasets of the aggregate table.
type Range string

// Aggregate ranges.
const (
	RangeNormal Range = "normal"
	RangeCutoff Range = "cutoff"
	RangeLastQ  Range = "lastq"
)

// Ranges lists every aggregate range in output order.
var Ranges = []Range{RangeNormal, RangeCutoff, RangeLastQ}

// Snapshot is the reconstructed state of one item on one day within a scope.
type Snapshot struct {
	Date       time.Time `json:"date"`
	Scope      string    `json:"scope"`
	Status     string    `json:"status"`
	Project    string    `json:"project"`
	Column     string    `json:"column"`
	MaintType  string    `json:"maint_type"`
	Priority   string    `json:"priority"`
	ItemID     int64     `json:"item_id"`
	CategoryID int64     `json:"category_id"`
	Points     int       `json:"points"`
}

// ReportRow is a snapshot with its report category. RuleOrder is the order of
// the rule that assigned the category; Display and IncludeInStatus are
// copied from that rule.
type ReportRow struct {
	Category string `json:"category"`
	Snapshot
	RuleOrder       int  `json:"rule_order"`
	Display         bool `json:"display"`
	IncludeInStatus bool `json:"include_in_status"`
}

// AggregateRow is one (range, date, category, status, maint type) bucket.
type AggregateRow struct {
	Date      time.Time `json:"date"`
	Scope     string    `json:"scope"`
	Range     Range     `json:"range"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	MaintType string    `json:"maint_type"`
	PointsSum int       `json:"points_sum"`
	Count     int       `json:"count"`
	Display   bool      `json:"display"`
}

// ClosedRow counts items that reached the resolved status on a day.
type ClosedRow struct {
	Date      time.Time `json:"date"`
	Scope     string    `json:"scope"`
	Category  string    `json:"category"`
	PointsSum int       `json:"points_sum"`
	Count     int       `json:"count"`
}

// StatusRow is one (category, status) bucket of the status feed on one day.
type StatusRow struct {
	Date      time.Time `json:"date"`
	Scope     string    `json:"scope"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	PointsSum int       `json:"points_sum"`
	Count     int       `json:"count"`
}

// OpenTask is an unresolved item on the newest report day.
type OpenTask struct {
	Title string `json:"title"`
	ReportRow
	// Pointed is false when the points came from the scope default.
	Pointed bool `json:"pointed"`
}
