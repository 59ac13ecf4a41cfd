package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/burnup/internal/cli"
	"github.com/Veraticus/burnup/internal/common"
	"github.com/Veraticus/burnup/internal/config"
	"github.com/Veraticus/burnup/internal/model"
	"github.com/Veraticus/burnup/internal/service"
	"github.com/Veraticus/burnup/internal/storage"
)

// initStorage opens the configured database and applies migrations.
func initStorage(ctx context.Context) (service.Storage, *config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewSQLiteStorageWithDriver(settings.Driver, settings.DatabasePath)
	if err != nil {
		return nil, nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, settings, nil
}

// loadScope reads a scope file from the configured scopes directory.
func loadScope(settings *config.Settings, name string) (*config.Scope, error) {
	return config.LoadScope(settings.ScopesDir, name)
}

// parseDayFlag parses an optional YYYY-MM-DD flag value.
func parseDayFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	day, err := model.ParseDay(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return day, nil
}

// interrupted turns the cancellation error of an interrupted run into a
// user error; the handler has already printed how to resume.
func interrupted(h *cli.InterruptHandler, err error) error {
	if err == nil || !h.WasInterrupted() {
		return err
	}
	return common.NewUserError("interrupted", err)
}
