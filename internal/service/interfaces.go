// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/burnup/internal/model"
)

// EventStore is the read side of the immutable event log. All asOf bounds
// are exclusive: an event belongs to the log as of asOf when its time is
// strictly before asOf.
type EventStore interface {
	// LatestAttributeValue returns the newest value of attribute for item,
	// ordered by (timestamp, sequence). ok is false when none exists.
	LatestAttributeValue(ctx context.Context, itemID int64, attribute string, asOf time.Time) (value string, ok bool, err error)
	// ActiveEdgeSet returns the item's memberships among categories.
	ActiveEdgeSet(ctx context.Context, itemID int64, categories []int64, asOf time.Time) (model.EdgeSet, error)
	// AllItemsWithEdge returns every item that is a member of category.
	AllItemsWithEdge(ctx context.Context, categoryID int64, asOf time.Time) ([]int64, error)
	// ActiveEdges returns the memberships among categories for every item with at least one.
	ActiveEdges(ctx context.Context, categories []int64, asOf time.Time) (map[int64]model.EdgeSet, error)
	// TransactionEvents returns every event of one attribute of item in log order.
	TransactionEvents(ctx context.Context, itemID int64, attribute string) ([]model.TransactionEvent, error)
	// ChildLinks returns parent id -> child ids for every link in the log.
	ChildLinks(ctx context.Context, asOf time.Time) (map[int64][]int64, error)

	GetItem(ctx context.Context, id int64) (*model.Item, error)
	GetItems(ctx context.Context, ids []int64) (map[int64]model.Item, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetColumns(ctx context.Context) ([]model.Column, error)
	EarliestEventDate(ctx context.Context) (time.Time, error)
}

// Ingestor appends to the event log. Re-loading the same records is a no-op.
type Ingestor interface {
	SaveItems(ctx context.Context, items []model.Item) error
	SaveCategories(ctx context.Context, categories []model.Category) error
	SaveColumns(ctx context.Context, columns []model.Column) error
	AppendTransactionEvents(ctx context.Context, events []model.TransactionEvent) error
	AppendEdgeEvents(ctx context.Context, events []model.EdgeEvent) error
	AppendLinkEvents(ctx context.Context, events []model.LinkEvent) error
}

// SnapshotWriter writes one day's snapshot rows as a single atomic batch.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, scope string, day time.Time, rows []model.Snapshot) error
}

// Rebuild stages a full reconstruction of a scope. Nothing is visible until
// Commit replaces the scope's rows in one transaction.
type Rebuild interface {
	SnapshotWriter
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// SnapshotStore holds the reconstructed task_on_date rows.
type SnapshotStore interface {
	SnapshotWriter
	WipeScope(ctx context.Context, scope string) error
	// MaxDate returns the newest snapshot day of scope; ok is false when the scope is empty.
	MaxDate(ctx context.Context, scope string) (day time.Time, ok bool, err error)
	BeginRebuild(ctx context.Context, scope, runID string) (Rebuild, error)
	Snapshots(ctx context.Context, scope string, from, to time.Time) ([]model.Snapshot, error)
	// ResolvedItemsOn returns the ids whose snapshot on day has the given status.
	ResolvedItemsOn(ctx context.Context, scope string, day time.Time, status string) (map[int64]bool, error)
}

// ReportStore holds the report-facing view and its aggregates.
type ReportStore interface {
	ReplaceReport(ctx context.Context, scope string, rows []model.ReportRow, aggregates []model.AggregateRow) error
	AppendReport(ctx context.Context, scope string, rows []model.ReportRow, aggregates []model.AggregateRow) error
	ReportRows(ctx context.Context, scope string) ([]model.ReportRow, error)
	Aggregates(ctx context.Context, scope string) ([]model.AggregateRow, error)
	// MaxReportDate returns the newest report day of scope; ok is false when empty.
	MaxReportDate(ctx context.Context, scope string) (day time.Time, ok bool, err error)
}

// Run statuses recorded in the run log.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunRecord is the audit entry of one reconstruction run.
type RunRecord struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Skips       map[string]int
	ID          string
	Scope       string
	Mode        string
	Status      string
	Days        int
	RowsWritten int
}

// RunLog records reconstruction runs for auditability.
type RunLog interface {
	StartRun(ctx context.Context, run *RunRecord) error
	FinishRun(ctx context.Context, run *RunRecord) error
	LatestRun(ctx context.Context, scope string) (*RunRecord, error)
}

// Storage is everything the burnup commands need from persistence.
type Storage interface {
	EventStore
	Ingestor
	SnapshotStore
	ReportStore
	RunLog

	Migrate(ctx context.Context) error
	Close() error
}
