// Package export writes the report feed as CSV files for charting tools.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Veraticus/burnup/internal/model"
)

// Feed file names inside the output directory.
const (
	AggregatesFile     = "aggregates.csv"
	RecentlyClosedFile = "recently_closed.csv"
	StatusFile         = "status.csv"
	OpenTasksFile      = "open_tasks.csv"
	UnpointedFile      = "unpointed.csv"
)

var (
	aggregateHeader = []string{"range", "date", "category", "status", "maint_type", "points", "count", "display"}
	closedHeader    = []string{"date", "category", "points", "count"}
	statusHeader    = []string{"date", "category", "status", "points", "count"}
	openHeader      = []string{"date", "item_id", "title", "category", "status", "project", "column", "points", "priority"}
)

// Feed is everything one report run exports.
type Feed struct {
	Aggregates []model.AggregateRow
	Closed     []model.ClosedRow
	Status     []model.StatusRow
	// Open holds the unresolved items of displayed categories.
	Open []model.OpenTask
}

// WriteAggregates writes aggregate rows in the order given.
func WriteAggregates(w io.Writer, rows []model.AggregateRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, aggregateHeader)
	for _, row := range rows {
		records = append(records, []string{
			string(row.Range),
			model.FormatDay(row.Date),
			row.Category,
			row.Status,
			row.MaintType,
			strconv.Itoa(row.PointsSum),
			strconv.Itoa(row.Count),
			strconv.FormatBool(row.Display),
		})
	}
	return writeAll(w, records)
}

// WriteRecentlyClosed writes recently closed counts in the order given.
func WriteRecentlyClosed(w io.Writer, rows []model.ClosedRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, closedHeader)
	for _, row := range rows {
		records = append(records, []string{
			model.FormatDay(row.Date),
			row.Category,
			strconv.Itoa(row.PointsSum),
			strconv.Itoa(row.Count),
		})
	}
	return writeAll(w, records)
}

// WriteStatus writes the status feed in the order given.
func WriteStatus(w io.Writer, rows []model.StatusRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, statusHeader)
	for _, row := range rows {
		records = append(records, []string{
			model.FormatDay(row.Date),
			row.Category,
			row.Status,
			strconv.Itoa(row.PointsSum),
			strconv.Itoa(row.Count),
		})
	}
	return writeAll(w, records)
}

// WriteOpenTasks writes open items in the order given.
func WriteOpenTasks(w io.Writer, tasks []model.OpenTask) error {
	records := make([][]string, 0, len(tasks)+1)
	records = append(records, openHeader)
	for _, task := range tasks {
		records = append(records, []string{
			model.FormatDay(task.Date),
			strconv.FormatInt(task.ItemID, 10),
			task.Title,
			task.Category,
			task.Status,
			task.Project,
			task.Column,
			strconv.Itoa(task.Points),
			task.Priority,
		})
	}
	return writeAll(w, records)
}

// Unpointed returns the tasks whose points came from the scope default.
func Unpointed(tasks []model.OpenTask) []model.OpenTask {
	var out []model.OpenTask
	for _, task := range tasks {
		if !task.Pointed {
			out = append(out, task)
		}
	}
	return out
}

func writeAll(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteFeed writes every feed file into dir, creating it when needed.
// It returns the paths written.
func WriteFeed(dir string, feed Feed) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{AggregatesFile, func(w io.Writer) error { return WriteAggregates(w, feed.Aggregates) }},
		{RecentlyClosedFile, func(w io.Writer) error { return WriteRecentlyClosed(w, feed.Closed) }},
		{StatusFile, func(w io.Writer) error { return WriteStatus(w, feed.Status) }},
		{OpenTasksFile, func(w io.Writer) error { return WriteOpenTasks(w, feed.Open) }},
		{UnpointedFile, func(w io.Writer) error { return WriteOpenTasks(w, Unpointed(feed.Open)) }},
	}

	paths := make([]string, 0, len(files))
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		if err := writeFile(path, file.write); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is built from the configured output directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return write(f)
}
