package engine

import (
	"github.com/Veraticus/burnup/internal/service"
)

// Store is the persistence the engine drives.
type Store interface {
	service.EventStore
	service.SnapshotStore
	service.ReportStore
	service.RunLog
}

// ProgressFunc is called after each committed day with the number of
// days done and the total.
type ProgressFunc func(done, total int)
