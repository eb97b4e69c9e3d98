// Package di provides dependency injection for service initialization.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/evaluation/workers"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/modules/catalog"
	"github.com/aristath/dealflow/internal/modules/filters"
	"github.com/aristath/dealflow/internal/modules/matching"
	"github.com/aristath/dealflow/internal/modules/opportunities"
	"github.com/aristath/dealflow/internal/modules/resubmission"
	"github.com/aristath/dealflow/internal/reliability"
	"github.com/rs/zerolog"
)

const (
	hubBuffer          = 64
	redisStreamMaxLen  = 100000
	archiveQueueLength = 256
)

// InitializeServices creates every service on top of the opened databases and
// warms their in-memory state from disk.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Events
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Deal catalog
	container.Catalog = catalog.NewService(
		catalog.NewRepository(container.CatalogDB.Conn(), log),
		container.EventManager,
		log,
	)

	// Filter rule store
	container.Filters = filters.NewService(
		filters.NewRepository(container.FiltersDB.Conn(), log),
		filters.NewTracker(),
		filters.NewDimensionIndex(),
		container.EventManager,
		cfg.DefaultThreshold,
		log,
	)
	if err := container.Filters.Load(ctx); err != nil {
		return fmt.Errorf("failed to load filter sets: %w", err)
	}

	// Results ledger and status reconciliation
	container.Ledger = matching.NewLedger(
		matching.NewResultsRepository(container.LedgerDB.Conn(), log),
		container.EventManager,
		log,
	)
	if err := container.Ledger.Load(ctx); err != nil {
		return fmt.Errorf("failed to load evaluation ledger: %w", err)
	}
	container.Reconciler = matching.NewReconciler(container.Ledger, container.Catalog, container.Filters, log)

	// Resubmission feed
	container.Outbox = resubmission.NewOutbox(container.ViewsDB.Conn(), log)
	container.Hub = resubmission.NewHub(hubBuffer, log)
	container.Notifier = resubmission.NewNotifier(container.EventManager, container.Outbox, container.Hub, log)
	container.Ledger.SetNotifier(container.Notifier)
	if err := initializeSinks(container, cfg, log); err != nil {
		return err
	}

	// Opportunity views
	container.ViewStore = opportunities.NewViewStore(container.ViewsDB.Conn(), log)
	if err := container.ViewStore.Load(ctx); err != nil {
		return fmt.Errorf("failed to load opportunity views: %w", err)
	}
	container.EvalPool = workers.NewWorkerPool(cfg.EvalWorkers)
	container.Materializer = opportunities.NewMaterializer(
		container.Catalog,
		container.Filters,
		container.Ledger,
		container.ViewStore,
		container.EvalPool,
		container.EventManager,
		cfg.DefaultThreshold,
		log,
	)

	if cfg.Archive.Enabled() {
		uploader, err := reliability.NewS3Uploader(ctx, reliability.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Endpoint:        cfg.Archive.Endpoint,
			Region:          cfg.Archive.Region,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive uploader: %w", err)
		}
		container.Archive = reliability.NewViewArchive(uploader, cfg.Archive.Bucket, cfg.Archive.Prefix, archiveQueueLength, log)
		container.Materializer.SetArchiver(container.Archive)
	}

	log.Info().
		Int("investors", len(container.Filters.Investors())).
		Int("views", len(container.ViewStore.Investors())).
		Bool("archive", container.Archive != nil).
		Msg("Services initialized")
	return nil
}

// initializeSinks connects the optional external sinks for resubmission notices.
func initializeSinks(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if cfg.Redis.Enabled() {
		client, err := resubmission.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password)
		if err != nil {
			return fmt.Errorf("failed to configure redis sink: %w", err)
		}
		container.Notifier.AddSink(resubmission.NewRedisSink(client, cfg.Redis.Stream, redisStreamMaxLen))
		container.closers = append(container.closers, client.Close)
	}

	if cfg.AMQP.Enabled() {
		sink, closeFn, err := resubmission.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return fmt.Errorf("failed to connect amqp sink: %w", err)
		}
		container.Notifier.AddSink(sink)
		container.closers = append(container.closers, closeFn)
	}

	log.Debug().
		Bool("redis", cfg.Redis.Enabled()).
		Bool("amqp", cfg.AMQP.Enabled()).
		Msg("Resubmission sinks configured")
	return nil
}
