// Package testutil provides test utilities for the burnup project: isolated
// in-memory databases and a fluent builder for event-log fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/burnup/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	testutil.NewLog(t).
//		Category(10, "Analytics", "PHID-PROJ-1").
//		Item(1, "Fix dashboards").
//		Status(1, "2024-01-01T09:00", "open").
//		Edge(1, 10, "2024-01-01T09:00").
//		Load(db)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithDriver(t, storage.DriverCGo)
}

// SetupTestDBWithDriver is SetupTestDB for a specific database/sql driver.
func SetupTestDBWithDriver(t *testing.T, driver string) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorageWithDriver(driver, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}
