// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/dealflow/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// This is the main entry point for dependency injection
// Order of operations:
// 1. Initialize databases
// 2. Initialize services (loading filter sets, ledger and views from disk)
// 3. Initialize the work processor and its event triggers
// 4. Register scheduled jobs
// Nothing is started; call Start once the caller is ready to process work.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Initialize services
	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 3: Initialize work processor
	if _, err := InitializeWork(container, cfg, log); err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to initialize work processor: %w", err)
	}

	// Step 4: Register jobs
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}

// Start launches the background components: the work processor, the view
// archive and the scheduler.
func (c *Container) Start() {
	if c.Archive != nil {
		c.Archive.Start()
	}
	if c.Work != nil {
		c.Work.Processor.Start()
	}
	if c.Scheduler != nil {
		c.Scheduler.Start()
	}
}

// Close stops background components in dependency order, releases external
// connections and closes the databases. Safe to call on a partly wired container.
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Work != nil {
		c.Work.Processor.Stop()
	}
	if c.Notifier != nil {
		c.Notifier.Wait()
	}
	if c.Archive != nil {
		c.Archive.Stop()
	}

	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil

	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s database: %w", db.Name(), err))
		}
	}
	c.CatalogDB, c.FiltersDB, c.LedgerDB, c.ViewsDB = nil, nil, nil, nil
	return errors.Join(errs...)
}
