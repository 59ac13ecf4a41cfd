// Package ingest loads normalized event-log records into the store.
//
// Input is newline-delimited JSON, one record per line:
//
//	{"type":"item","data":{"id":1,"title":"Dashboards","points_at_ingest":"3"}}
//	{"type":"transaction","data":{"id":"PHID-XACT-1","item_id":1,"attribute":"status","new_value":"open","timestamp":"2024-01-01T09:00:00Z"}}
//
// Record types are item, category, column, transaction, edge and link.
// Loading the same file twice is a no-op.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
)

// Record types.
const (
	TypeItem        = "item"
	TypeCategory    = "category"
	TypeColumn      = "column"
	TypeTransaction = "transaction"
	TypeEdge        = "edge"
	TypeLink        = "link"
)

// DefaultBatchSize is the number of records buffered before a flush.
const DefaultBatchSize = 1000

// maxLineSize bounds one record; column placement payloads can be large.
const maxLineSize = 4 * 1024 * 1024

// ErrUnknownRecord is returned for a record type the loader does not know.
var ErrUnknownRecord = errors.New("unknown record type")

type record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Counts reports how many records of each type were read.
type Counts struct {
	Items        int
	Categories   int
	Columns      int
	Transactions int
	Edges        int
	Links        int
}

// Total is the number of records read.
func (c Counts) Total() int {
	return c.Items + c.Categories + c.Columns + c.Transactions + c.Edges + c.Links
}

// Loader buffers records and writes them in batches.
type Loader struct {
	store        service.Ingestor
	items        []model.Item
	categories   []model.Category
	columns      []model.Column
	transactions []model.TransactionEvent
	edges        []model.EdgeEvent
	links        []model.LinkEvent
	batchSize    int
	pending      int
}

// NewLoader creates a loader writing to store.
func NewLoader(store service.Ingestor, batchSize int) *Loader {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Loader{store: store, batchSize: batchSize}
}

// Load reads every record from r. Records are written in batches, catalog
// records before events within a batch.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Counts, error) {
	var counts Counts
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return counts, err
		}

		if err := l.add(line, &counts); err != nil {
			return counts, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if l.pending >= l.batchSize {
			if err := l.Flush(ctx); err != nil {
				return counts, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return counts, fmt.Errorf("failed to read input: %w", err)
	}
	if err := l.Flush(ctx); err != nil {
		return counts, err
	}

	slog.Info("Loaded event log records",
		"items", counts.Items,
		"categories", counts.Categories,
		"columns", counts.Columns,
		"transactions", counts.Transactions,
		"edges", counts.Edges,
		"links", counts.Links)
	return counts, nil
}

func (l *Loader) add(line []byte, counts *Counts) error {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	switch rec.Type {
	case TypeItem:
		var v model.Item
		if err := decode(rec, &v); err != nil {
			return err
		}
		l.items = append(l.items, v)
		counts.Items++
	case TypeCategory:
		var v model.Category
		if err := decode(rec, &v); err != nil {
			return err
		}
		l.categories = append(l.categories, v)
		counts.Categories++
	case TypeColumn:
		var v model.Column
		if err := decode(rec, &v); err != nil {
			return err
		}
		l.columns = append(l.columns, v)
		counts.Columns++
	case TypeTransaction:
		var v model.TransactionEvent
		if err := decode(rec, &v); err != nil {
			return err
		}
		l.transactions = append(l.transactions, v)
		counts.Transactions++
	case TypeEdge:
		var v model.EdgeEvent
		if err := decode(rec, &v); err != nil {
			return err
		}
		l.edges = append(l.edges, v)
		counts.Edges++
	case TypeLink:
		var v model.LinkEvent
		if err := decode(rec, &v); err != nil {
			return err
		}
		l.links = append(l.links, v)
		counts.Links++
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecord, rec.Type)
	}
	l.pending++
	return nil
}

func decode(rec record, v any) error {
	if len(rec.Data) == 0 {
		return fmt.Errorf("%s record has no data", rec.Type)
	}
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return fmt.Errorf("invalid %s record: %w", rec.Type, err)
	}
	return nil
}

// Flush writes the buffered records.
func (l *Loader) Flush(ctx context.Context) error {
	if l.pending == 0 {
		return nil
	}
	steps := []struct {
		write func() error
		name  string
		n     int
	}{
		{func() error { return l.store.SaveCategories(ctx, l.categories) }, "categories", len(l.categories)},
		{func() error { return l.store.SaveColumns(ctx, l.columns) }, "columns", len(l.columns)},
		{func() error { return l.store.SaveItems(ctx, l.items) }, "items", len(l.items)},
		{func() error { return l.store.AppendTransactionEvents(ctx, l.transactions) }, "transactions", len(l.transactions)},
		{func() error { return l.store.AppendEdgeEvents(ctx, l.edges) }, "edges", len(l.edges)},
		{func() error { return l.store.AppendLinkEvents(ctx, l.links) }, "links", len(l.links)},
	}
	for _, step := range steps {
		if step.n == 0 {
			continue
		}
		if err := step.write(); err != nil {
			return fmt.Errorf("failed to save %s: %w", step.name, err)
		}
	}

	slog.Debug("Flushed record batch", "records", l.pending)
	l.items, l.categories, l.columns = l.items[:0], l.categories[:0], l.columns[:0]
	l.transactions, l.edges, l.links = l.transactions[:0], l.edges[:0], l.links[:0]
	l.pending = 0
	return nil
}
