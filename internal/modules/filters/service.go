// Package filters stores each investor's assessment and risk rules. Every
// accepted edit produces a new, strictly higher version.
package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/utils"
	"github.com/rs/zerolog"
)

const moduleName = "filters"

// Service validates and versions filter sets and keeps the in-memory tracker
// and dimension index in step with the database.
type Service struct {
	repo             *Repository
	tracker          *Tracker
	index            *DimensionIndex
	events           *events.Manager
	locks            *utils.KeyedMutex
	defaultThreshold float64
	now              func() time.Time
	log              zerolog.Logger
}

// NewService creates a filter service. defaultThreshold applies to sets
// without an explicit passing threshold.
func NewService(repo *Repository, tracker *Tracker, index *DimensionIndex, eventManager *events.Manager, defaultThreshold float64, log zerolog.Logger) *Service {
	return &Service{
		repo:             repo,
		tracker:          tracker,
		index:            index,
		events:           eventManager,
		locks:            utils.NewKeyedMutex(),
		defaultThreshold: defaultThreshold,
		now:              func() time.Time { return time.Now().UTC() },
		log:              log.With().Str("service", "filters").Logger(),
	}
}

// Load fills the tracker and index from the database. Call once on startup.
func (s *Service) Load(ctx context.Context) error {
	sets, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load filter sets: %w", err)
	}
	for _, set := range sets {
		s.tracker.Set(set)
		s.index.Set(set.InvestorID, set.Dimensions())
	}
	s.log.Info().Int("investors", len(sets)).Msg("Filter sets loaded")
	return nil
}

// DefaultThreshold returns the passing threshold used when a set has none.
func (s *Service) DefaultThreshold() float64 {
	return s.defaultThreshold
}

// Replace validates set and stores it as the investor's next version.
// Invalid sets are rejected before anything is written.
func (s *Service) Replace(ctx context.Context, set *domain.InvestorFilterSet) (*domain.InvestorFilterSet, error) {
	if err := Validate(set); err != nil {
		return nil, err
	}

	next := set.Clone()
	normalize(next)
	next.UpdatedAt = s.now()

	unlock := s.locks.Lock(next.InvestorID)
	if err := s.repo.Replace(ctx, next); err != nil {
		unlock()
		return nil, err
	}
	s.tracker.Set(next)
	s.index.Set(next.InvestorID, next.Dimensions())
	unlock()

	s.log.Info().
		Str("investor_id", next.InvestorID).
		Int64("version", next.Version).
		Int("assessment_rules", len(next.AssessmentRules)).
		Int("risk_rules", len(next.RiskRules)).
		Msg("Filter set replaced")

	s.events.EmitTyped(moduleName, &events.FilterSetChangedData{
		InvestorID: next.InvestorID,
		Version:    next.Version,
	})
	return next.Clone(), nil
}

// Get returns the investor's current filter set.
func (s *Service) Get(investorID string) (*domain.InvestorFilterSet, error) {
	set, ok := s.tracker.Snapshot(investorID)
	if !ok {
		return nil, domain.ErrFilterSetNotFound
	}
	return set, nil
}

// Snapshot returns the investor's current filter set and whether it exists.
func (s *Service) Snapshot(investorID string) (*domain.InvestorFilterSet, bool) {
	return s.tracker.Snapshot(investorID)
}

// CurrentVersion returns the investor's current version and whether it exists.
func (s *Service) CurrentVersion(investorID string) (int64, bool) {
	return s.tracker.Version(investorID)
}

// Investors returns every investor with a filter set.
func (s *Service) Investors() []string {
	return s.tracker.Investors()
}

// List returns every current filter set.
func (s *Service) List() []*domain.InvestorFilterSet {
	ids := s.tracker.Investors()
	sets := make([]*domain.InvestorFilterSet, 0, len(ids))
	for _, id := range ids {
		if set, ok := s.tracker.Snapshot(id); ok {
			sets = append(sets, set)
		}
	}
	return sets
}

// References reports whether the investor's rules use any of dims.
func (s *Service) References(investorID string, dims []domain.Dimension) bool {
	return s.index.References(investorID, dims)
}

// InterestedInvestors returns the investors whose rules use any of dims.
func (s *Service) InterestedInvestors(dims []domain.Dimension) []string {
	return s.index.Interested(dims)
}

// History returns stored versions of an investor's filter set, newest first.
func (s *Service) History(ctx context.Context, investorID string, limit int) ([]*domain.InvestorFilterSet, error) {
	history, err := s.repo.History(ctx, investorID, limit)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, domain.ErrFilterSetNotFound
	}
	return history, nil
}

// Delete removes an investor's filter set. The investor stops having a view.
func (s *Service) Delete(ctx context.Context, investorID string) error {
	unlock := s.locks.Lock(investorID)
	version, err := s.repo.Delete(ctx, investorID)
	if err != nil {
		unlock()
		return err
	}
	s.tracker.Remove(investorID)
	s.index.Remove(investorID)
	unlock()

	s.log.Info().Str("investor_id", investorID).Int64("version", version).Msg("Filter set deleted")
	s.events.EmitTyped(moduleName, &events.FilterSetDeletedData{
		InvestorID: investorID,
		Version:    version,
	})
	return nil
}
