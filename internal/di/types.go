/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is created by Wire() and handed to the HTTP server and the entry
 * point, which own the lifecycle of the background components it holds.
 */
package di

import (
	"github.com/aristath/dealflow/internal/database"
	"github.com/aristath/dealflow/internal/evaluation/workers"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/modules/catalog"
	"github.com/aristath/dealflow/internal/modules/filters"
	"github.com/aristath/dealflow/internal/modules/matching"
	"github.com/aristath/dealflow/internal/modules/opportunities"
	"github.com/aristath/dealflow/internal/modules/resubmission"
	"github.com/aristath/dealflow/internal/reliability"
	"github.com/aristath/dealflow/internal/scheduler"
	"github.com/aristath/dealflow/internal/work"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: catalog (deals, status history), filters (filter sets, history),
 *   ledger (append-only evaluation results), views (published views, outbox)
 * - Services: catalog, filter store, results ledger, reconciler, materializer,
 *   resubmission notifier
 * - Work Components: priority queue fed by event triggers and the scheduler
 * - Optional fan-out: Redis / AMQP sinks and the S3 view archive
 */
type Container struct {
	// Databases
	CatalogDB *database.DB // Deals and status history
	FiltersDB *database.DB // Investor filter sets and their history
	LedgerDB  *database.DB // Evaluation results (append-only)
	ViewsDB   *database.DB // Published opportunity views and the resubmission outbox

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Services
	Catalog      *catalog.Service
	Filters      *filters.Service
	Ledger       *matching.Ledger
	Reconciler   *matching.Reconciler
	ViewStore    *opportunities.ViewStore
	Materializer *opportunities.Materializer
	EvalPool     *workers.WorkerPool

	// Resubmission feed
	Outbox   *resubmission.Outbox
	Hub      *resubmission.Hub
	Notifier *resubmission.Notifier

	// Optional collaborators (nil when not configured)
	Archive *reliability.ViewArchive

	// Work processing
	Work      *WorkComponents
	Scheduler *scheduler.Scheduler

	// closers release external connections (AMQP, Redis) on shutdown
	closers []func() error
}

// WorkComponents holds all work processor components
type WorkComponents struct {
	Registry   *work.Registry
	Completion *work.CompletionTracker
	Processor  *work.Processor
	Handlers   *work.Handlers
}

// Databases returns the container's databases keyed by name.
func (c *Container) Databases() map[string]*database.DB {
	out := make(map[string]*database.DB, 4)
	for _, db := range []*database.DB{c.CatalogDB, c.FiltersDB, c.LedgerDB, c.ViewsDB} {
		if db != nil {
			out[db.Name()] = db
		}
	}
	return out
}
