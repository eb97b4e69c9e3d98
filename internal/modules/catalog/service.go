// Package catalog owns deal records and their lifecycle status.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/utils"
	"github.com/rs/zerolog"
)

const moduleName = "catalog"

// Service serializes all writes to a given deal and emits catalog events.
type Service struct {
	repo   *Repository
	events *events.Manager
	locks  *utils.KeyedMutex
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a catalog service.
func NewService(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: eventManager,
		locks:  utils.NewKeyedMutex(),
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.With().Str("service", "catalog").Logger(),
	}
}

// Create registers a new submission. Status is forced to pending and the
// version starts at 1.
func (s *Service) Create(ctx context.Context, deal domain.Deal) (*domain.Deal, error) {
	deal.ID = strings.TrimSpace(deal.ID)
	if deal.ID == "" {
		return nil, fmt.Errorf("%w: deal id is required", ErrInvalidDeal)
	}
	if err := validateAttributes(deal.Attributes); err != nil {
		return nil, err
	}

	now := s.now()
	deal.Status = domain.StatusPending
	deal.Version = 1
	if deal.SubmittedAt.IsZero() {
		deal.SubmittedAt = now
	}
	deal.UpdatedAt = now

	unlock := s.locks.Lock(deal.ID)
	err := s.repo.Insert(ctx, &deal)
	unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("deal_id", deal.ID).Int64("revision", deal.Revision).Msg("Deal submitted")
	s.events.EmitTyped(moduleName, &events.DealSubmittedData{
		DealID:   deal.ID,
		Version:  deal.Version,
		Revision: deal.Revision,
	})
	return &deal, nil
}

// Get returns one deal.
func (s *Service) Get(ctx context.Context, id string) (*domain.Deal, error) {
	return s.repo.Get(ctx, id)
}

// All returns a full catalog scan.
func (s *Service) All(ctx context.Context) ([]domain.Deal, error) {
	return s.repo.All(ctx)
}

// List returns one filtered page of the catalog and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Deal, int, error) {
	return s.repo.List(ctx, filter)
}

// Revision returns the catalog-wide write counter.
func (s *Service) Revision(ctx context.Context) (int64, error) {
	return s.repo.Revision(ctx)
}

// History returns the status history of a deal.
func (s *Service) History(ctx context.Context, id string) ([]StatusChange, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// UpdateAttributes applies an applicant edit. The deal version is bumped and a
// deal in needs_resubmission returns to pending. Edits that change nothing on a
// deal that is not awaiting resubmission are no-ops.
func (s *Service) UpdateAttributes(ctx context.Context, id string, attrs domain.Attributes) (*domain.Deal, error) {
	if err := validateAttributes(attrs); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	deal, err := s.repo.Get(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	if !deal.Status.AcceptsApplicantUpdate() {
		unlock()
		return nil, fmt.Errorf("%w: deal %s is %s and no longer accepts updates", domain.ErrInvalidTransition, id, deal.Status)
	}

	changed := deal.Attributes.ChangedDimensions(attrs)
	reset := deal.Status == domain.StatusNeedsResubmission
	if len(changed) == 0 && !reset {
		unlock()
		return deal, nil
	}

	now := s.now()
	var change *StatusChange
	if reset {
		change = &StatusChange{
			DealID:    id,
			From:      deal.Status,
			To:        domain.StatusPending,
			Reason:    "applicant resubmitted",
			Source:    events.SourceApplicant,
			ChangedAt: now,
		}
		deal.Status = domain.StatusPending
	}
	deal.Attributes = attrs
	deal.Version++
	deal.UpdatedAt = now

	err = s.repo.Save(ctx, deal, change)
	unlock()
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("deal_id", id).
		Int64("version", deal.Version).
		Interface("changed", changed).
		Bool("status_reset", reset).
		Msg("Deal attributes updated")

	s.events.EmitTyped(moduleName, &events.DealUpdatedData{
		DealID:            id,
		Version:           deal.Version,
		Revision:          deal.Revision,
		ChangedDimensions: changed,
		StatusReset:       reset,
	})
	return deal, nil
}

// SetStatus applies an operator transition. Moving a deal back to pending is
// reserved for applicant resubmission. Setting the current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, id string, status domain.DealStatus, reason string) (*domain.Deal, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidDeal, status)
	}

	unlock := s.locks.Lock(id)
	deal, err := s.repo.Get(ctx, id)
	if err != nil {
		unlock()
		return nil, err
	}
	if deal.Status == status {
		unlock()
		return deal, nil
	}
	if status == domain.StatusPending || !deal.Status.CanTransitionTo(status) {
		unlock()
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, deal.Status, status)
	}

	from, err := s.transition(ctx, deal, status, reason, events.SourceOperator)
	unlock()
	if err != nil {
		return nil, err
	}

	s.emitStatusChanged(deal, from, reason, events.SourceOperator)
	return deal, nil
}

// ApplyReconciledStatus writes a status derived from the pipeline's collective
// verdict. It only moves deals that are still pending or under review and only
// if the deal has not been edited since the verdict was computed. Returns
// whether the status changed.
func (s *Service) ApplyReconciledStatus(ctx context.Context, id string, status domain.DealStatus, expectedVersion int64) (bool, error) {
	unlock := s.locks.Lock(id)
	deal, err := s.repo.Get(ctx, id)
	if err != nil {
		unlock()
		return false, err
	}

	if deal.Version != expectedVersion || deal.Status == status {
		unlock()
		return false, nil
	}
	if deal.Status != domain.StatusPending && deal.Status != domain.StatusUnderReview {
		unlock()
		return false, nil
	}
	if !deal.Status.CanTransitionTo(status) {
		unlock()
		return false, nil
	}

	reason := "collective investor verdict"
	from, err := s.transition(ctx, deal, status, reason, events.SourceReconcile)
	unlock()
	if err != nil {
		return false, err
	}

	s.emitStatusChanged(deal, from, reason, events.SourceReconcile)
	return true, nil
}

func (s *Service) transition(ctx context.Context, deal *domain.Deal, to domain.DealStatus, reason, source string) (domain.DealStatus, error) {
	now := s.now()
	from := deal.Status
	change := &StatusChange{
		DealID:    deal.ID,
		From:      from,
		To:        to,
		Reason:    reason,
		Source:    source,
		ChangedAt: now,
	}

	deal.Status = to
	deal.UpdatedAt = now
	if err := s.repo.Save(ctx, deal, change); err != nil {
		return from, err
	}
	return from, nil
}

func (s *Service) emitStatusChanged(deal *domain.Deal, from domain.DealStatus, reason, source string) {
	s.log.Info().
		Str("deal_id", deal.ID).
		Str("from", string(from)).
		Str("to", string(deal.Status)).
		Str("source", source).
		Msg("Deal status changed")

	s.events.EmitTyped(moduleName, &events.DealStatusChangedData{
		DealID:   deal.ID,
		From:     from,
		To:       deal.Status,
		Source:   source,
		Reason:   reason,
		Revision: deal.Revision,
	})
}
