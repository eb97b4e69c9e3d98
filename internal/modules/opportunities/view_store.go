package opportunities

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ViewStore keeps the published view of every investor in memory and
// persists each publication to the views database.
type ViewStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	views map[string]*domain.OpportunityView
	log   zerolog.Logger
}

// NewViewStore creates a view store over the views database.
func NewViewStore(db *sql.DB, log zerolog.Logger) *ViewStore {
	return &ViewStore{
		db:    db,
		views: make(map[string]*domain.OpportunityView),
		log:   log.With().Str("repository", "opportunity_views").Logger(),
	}
}

// Load reads every persisted view into memory.
func (s *ViewStore) Load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT investor_id, payload FROM opportunity_views")
	if err != nil {
		return fmt.Errorf("failed to query views: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]*domain.OpportunityView)
	for rows.Next() {
		var investorID string
		var payload []byte
		if err := rows.Scan(&investorID, &payload); err != nil {
			return fmt.Errorf("failed to scan view: %w", err)
		}
		var view domain.OpportunityView
		if err := msgpack.Unmarshal(payload, &view); err != nil {
			// rebuilt by the next sweep
			s.log.Warn().Err(err).Str("investor_id", investorID).Msg("Skipping undecodable view")
			continue
		}
		loaded[investorID] = &view
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating views: %w", err)
	}

	s.mu.Lock()
	for id, v := range loaded {
		s.views[id] = v
	}
	s.mu.Unlock()

	s.log.Info().Int("views", len(loaded)).Msg("Opportunity views loaded")
	return nil
}

// Get returns the published view of an investor. Callers must not modify it.
func (s *ViewStore) Get(investorID string) (*domain.OpportunityView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[investorID]
	return v, ok
}

// Put persists view and makes it the investor's published view.
func (s *ViewStore) Put(ctx context.Context, view *domain.OpportunityView) error {
	payload, err := msgpack.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode view: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO opportunity_views (investor_id, filter_set_version, catalog_revision, generated_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(investor_id) DO UPDATE SET
			filter_set_version = excluded.filter_set_version,
			catalog_revision = excluded.catalog_revision,
			generated_at = excluded.generated_at,
			payload = excluded.payload
	`, view.InvestorID, view.FilterSetVersion, view.CatalogRevision, view.GeneratedAt.UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("failed to persist view for %s: %w", view.InvestorID, err)
	}

	s.mu.Lock()
	s.views[view.InvestorID] = view
	s.mu.Unlock()
	return nil
}

// Delete removes an investor's view.
func (s *ViewStore) Delete(ctx context.Context, investorID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM opportunity_views WHERE investor_id = ?", investorID); err != nil {
		return fmt.Errorf("failed to delete view for %s: %w", investorID, err)
	}
	s.mu.Lock()
	delete(s.views, investorID)
	s.mu.Unlock()
	return nil
}

// Investors returns the investors that currently have a view, sorted.
func (s *ViewStore) Investors() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
