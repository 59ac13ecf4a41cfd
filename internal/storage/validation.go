// Package storage provides the data persistence layer for the burnup application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/burnup/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrZeroDay          = errors.New("day cannot be zero")
	ErrInvalidItem      = errors.New("invalid item")
	ErrInvalidEvent     = errors.New("invalid event")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
	ErrUnknownDriver    = errors.New("unknown database driver")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateDay(day time.Time) error {
	if day.IsZero() {
		return ErrZeroDay
	}
	return nil
}

func validateItems(items []model.Item) error {
	for i, item := range items {
		if item.ID == 0 {
			return fmt.Errorf("%w: item at index %d has no id", ErrInvalidItem, i)
		}
	}
	return nil
}

func validateTransactionEvents(events []model.TransactionEvent) error {
	for i, ev := range events {
		switch {
		case ev.ID == "":
			return fmt.Errorf("%w: transaction at index %d has no id", ErrInvalidEvent, i)
		case ev.ItemID == 0:
			return fmt.Errorf("%w: transaction %s has no item", ErrInvalidEvent, ev.ID)
		case ev.Attribute == "":
			return fmt.Errorf("%w: transaction %s has no attribute", ErrInvalidEvent, ev.ID)
		case ev.Timestamp.IsZero():
			return fmt.Errorf("%w: transaction %s has no timestamp", ErrInvalidEvent, ev.ID)
		}
	}
	return nil
}

func validateEdgeEvents(events []model.EdgeEvent) error {
	for i, ev := range events {
		if ev.ItemID == 0 || ev.CategoryID == 0 || ev.ObservedAt.IsZero() {
			return fmt.Errorf("%w: edge at index %d is incomplete", ErrInvalidEvent, i)
		}
	}
	return nil
}

func validateLinkEvents(events []model.LinkEvent) error {
	for i, ev := range events {
		if ev.ParentID == 0 || ev.ChildID == 0 || ev.ObservedAt.IsZero() {
			return fmt.Errorf("%w: link at index %d is incomplete", ErrInvalidEvent, i)
		}
		if ev.ParentID == ev.ChildID {
			return fmt.Errorf("%w: link at index %d points to itself", ErrInvalidEvent, i)
		}
	}
	return nil
}

// validateSnapshots checks that every row belongs to the batch's scope and day.
func validateSnapshots(scope string, day time.Time, rows []model.Snapshot) error {
	want := model.FormatDay(day)
	for i, row := range rows {
		if row.ItemID == 0 {
			return fmt.Errorf("%w: row %d has no item", ErrInvalidSnapshot, i)
		}
		if row.Scope != scope {
			return fmt.Errorf("%w: row %d scope %q, batch scope %q", ErrInvalidSnapshot, i, row.Scope, scope)
		}
		if model.FormatDay(row.Date) != want {
			return fmt.Errorf("%w: row %d date %s, batch date %s", ErrInvalidSnapshot, i, model.FormatDay(row.Date), want)
		}
	}
	return nil
}
