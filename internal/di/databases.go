// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/database"
	"github.com/rs/zerolog"
)

type databaseSpec struct {
	name    string
	profile database.DatabaseProfile
	target  func(c *Container) **database.DB
}

var databaseSpecs = []databaseSpec{
	// catalog.db - Deals, catalog revision counter, status history
	{"catalog", database.ProfileStandard, func(c *Container) **database.DB { return &c.CatalogDB }},
	// filters.db - Current filter sets and their msgpack history
	{"filters", database.ProfileStandard, func(c *Container) **database.DB { return &c.FiltersDB }},
	// ledger.db - Append-only evaluation results
	{"ledger", database.ProfileLedger, func(c *Container) **database.DB { return &c.LedgerDB }},
	// views.db - Rebuildable views and the resubmission outbox
	{"views", database.ProfileCache, func(c *Container) **database.DB { return &c.ViewsDB }},
}

// InitializeDatabases opens all four databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	for _, spec := range databaseSpecs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			container.closeDatabases()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target(container) = db

		if err := db.Migrate(); err != nil {
			container.closeDatabases()
			return nil, fmt.Errorf("failed to migrate %s database: %w", spec.name, err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func (c *Container) closeDatabases() {
	for _, spec := range databaseSpecs {
		target := spec.target(c)
		if *target != nil {
			_ = (*target).Close()
			*target = nil
		}
	}
}
