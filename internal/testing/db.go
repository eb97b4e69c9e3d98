// Package testing provides database helpers and fixtures shared by package tests.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/dealflow/internal/database"
)

// NewTestDB creates a temp-file SQLite database with the named schema applied.
// The database is closed and removed when the test finishes.
//
// Names match the embedded schemas: "catalog", "filters", "ledger", "views".
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	tmpPath := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))

	// Create database from temporary file
	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	// Apply schema migration if schema exists for this database name
	err = db.Migrate()
	if err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	return db
}
