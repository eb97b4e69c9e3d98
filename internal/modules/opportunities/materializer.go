// Package opportunities materializes the ordered board of deals each investor
// can see and publishes it under versioned, per-investor optimistic control.
package opportunities

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/evaluation/workers"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/modules/matching"
	"github.com/aristath/dealflow/internal/utils"
	"github.com/rs/zerolog"
)

const moduleName = "opportunities"

// Discard reasons reported in PublishResult and VIEW_DISCARDED events.
const (
	ReasonInvestorRemoved    = "investor removed"
	ReasonSupersededFilter   = "filter set superseded"
	ReasonNewerView          = "newer view published"
	ReasonNewerCatalog       = "view reflects a newer catalog revision"
	ReasonDealAlreadyCurrent = "view already reflects this deal revision"
	ReasonCarriedForward     = "outcome carried forward"
)

// PublishResult describes what a recompute did.
type PublishResult struct {
	Published bool
	// Reason is set when nothing was published.
	Reason    string
	View      *domain.OpportunityView
	Evaluated int
	Failed    int
}

// Materializer builds and publishes opportunity views.
type Materializer struct {
	deals    DealSource
	filters  FilterSource
	ledger   ResultLedger
	store    *ViewStore
	pool     *workers.WorkerPool
	locks    *utils.KeyedMutex
	events   *events.Manager
	archiver Archiver

	defaultThreshold float64
	now              func() time.Time
	log              zerolog.Logger
}

// NewMaterializer creates a materializer.
func NewMaterializer(
	deals DealSource,
	filters FilterSource,
	ledger ResultLedger,
	store *ViewStore,
	pool *workers.WorkerPool,
	eventManager *events.Manager,
	defaultThreshold float64,
	log zerolog.Logger,
) *Materializer {
	return &Materializer{
		deals:            deals,
		filters:          filters,
		ledger:           ledger,
		store:            store,
		pool:             pool,
		locks:            utils.NewKeyedMutex(),
		events:           eventManager,
		defaultThreshold: defaultThreshold,
		now:              func() time.Time { return time.Now().UTC() },
		log:              log.With().Str("module", moduleName).Logger(),
	}
}

// SetArchiver installs a receiver for published views.
func (m *Materializer) SetArchiver(a Archiver) {
	m.archiver = a
}

// Recompute runs a full recompute against the investor's current filter set.
func (m *Materializer) Recompute(ctx context.Context, investorID, trigger string) (*PublishResult, error) {
	set, ok := m.filters.Snapshot(investorID)
	if !ok {
		return nil, domain.ErrFilterSetNotFound
	}
	return m.RecomputeInvestor(ctx, set, trigger)
}

// RecomputeInvestor evaluates the whole catalog against set and publishes the
// resulting view unless a newer filter-set version or view has landed meanwhile.
// Pairs that fail to evaluate are left off the view.
func (m *Materializer) RecomputeInvestor(ctx context.Context, set *domain.InvestorFilterSet, trigger string) (*PublishResult, error) {
	timer := utils.NewTimer("opportunities.recompute", m.log)

	// Read the revision first so the view never claims more than it scanned.
	revision, err := m.deals.Revision(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog revision: %w", err)
	}
	deals, err := m.deals.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog: %w", err)
	}

	pairs := m.pool.EvaluateBatch(ctx, deals, func(_ context.Context, deal domain.Deal) (*domain.EvaluationResult, error) {
		return matching.Evaluate(deal, set, m.defaultThreshold), nil
	}, nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := &domain.OpportunityView{
		InvestorID:       set.InvestorID,
		FilterSetVersion: set.Version,
		CatalogRevision:  revision,
		GeneratedAt:      m.now(),
		Entries:          []domain.ViewEntry{},
		DealRevisions:    make(map[string]int64, len(deals)),
	}

	res := &PublishResult{}
	results := make([]*domain.EvaluationResult, 0, len(pairs))
	for i, pair := range pairs {
		deal := deals[i]
		if pair.Err != nil {
			res.Failed++
			m.log.Warn().
				Err(pair.Err).
				Str("deal_id", deal.ID).
				Str("investor_id", set.InvestorID).
				Msg("Pair evaluation failed, omitting deal from view")
			continue
		}
		res.Evaluated++
		results = append(results, pair.Result)
		view.DealRevisions[deal.ID] = deal.Revision
		if deal.Revision > view.CatalogRevision {
			view.CatalogRevision = deal.Revision
		}
		if pair.Result.Terminal == domain.StateVisible {
			view.Entries = append(view.Entries, domain.ViewEntry{
				DealID:      deal.ID,
				Score:       pair.Result.Score,
				SubmittedAt: deal.SubmittedAt,
			})
		}
	}
	SortEntries(view.Entries)

	if err := m.publish(ctx, view, results, trigger, true, res); err != nil {
		return nil, err
	}

	timer.StopWithFields(map[string]interface{}{
		"investor_id": set.InvestorID,
		"version":     set.Version,
		"scanned":     len(deals),
		"visible":     len(view.Entries),
		"failed":      res.Failed,
		"published":   res.Published,
	})
	return res, nil
}

// RefreshDeal re-evaluates one deal for the investor and merges the outcome
// into a copy of the published view. When the change touches no dimension the
// investor's rules reference, the previous outcome is carried forward and the
// view is left as is. Without a same-version base view it falls back to a full
// recompute.
func (m *Materializer) RefreshDeal(ctx context.Context, set *domain.InvestorFilterSet, dealID string, changedDims []domain.Dimension, trigger string) (*PublishResult, error) {
	deal, err := m.deals.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if len(changedDims) > 0 && !m.affects(set, changedDims) {
		if base, ok := m.store.Get(set.InvestorID); ok && base.FilterSetVersion == set.Version {
			_, carried, err := m.ledger.CarryForward(ctx, deal.ID, set.InvestorID, set.Version, deal.Version)
			if err != nil {
				return nil, fmt.Errorf("failed to carry forward %s/%s: %w", deal.ID, set.InvestorID, err)
			}
			if carried {
				m.log.Debug().
					Str("deal_id", deal.ID).
					Str("investor_id", set.InvestorID).
					Msg("Outcome carried forward")
				return &PublishResult{Reason: ReasonCarriedForward}, nil
			}
		}
	}

	res := &PublishResult{}
	result, evalErr := evaluateSafely(*deal, set, m.defaultThreshold)
	if evalErr != nil {
		res.Failed++
		m.log.Warn().
			Err(evalErr).
			Str("deal_id", deal.ID).
			Str("investor_id", set.InvestorID).
			Msg("Pair evaluation failed, omitting deal from view")
	} else {
		res.Evaluated++
	}

	unlock := m.locks.Lock(set.InvestorID)
	base, hasBase := m.store.Get(set.InvestorID)
	if reason := m.staleReason(set.InvestorID, set.Version, base, hasBase); reason != "" {
		unlock()
		m.discarded(set.InvestorID, set.Version, trigger, reason)
		res.Reason = reason
		return res, nil
	}
	if !hasBase || base.FilterSetVersion < set.Version {
		unlock()
		return m.RecomputeInvestor(ctx, set, trigger)
	}
	if base.DealRevisions[deal.ID] >= deal.Revision {
		unlock()
		m.discarded(set.InvestorID, set.Version, trigger, ReasonDealAlreadyCurrent)
		res.Reason = ReasonDealAlreadyCurrent
		return res, nil
	}

	view := mergeDeal(base, deal, result, m.now())
	var results []*domain.EvaluationResult
	if result != nil {
		results = append(results, result)
	}
	err = m.commit(ctx, view, results)
	unlock()
	if err != nil {
		return nil, err
	}

	res.Published = true
	res.View = view
	m.published(view, trigger)
	return res, nil
}

// Current returns the investor's published view.
func (m *Materializer) Current(investorID string) (*domain.OpportunityView, bool) {
	return m.store.Get(investorID)
}

// Page returns one page of the investor's published view.
func (m *Materializer) Page(investorID string, offset, limit int) (*domain.ViewPage, error) {
	view, ok := m.store.Get(investorID)
	if !ok {
		return nil, domain.ErrViewNotFound
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	page := &domain.ViewPage{
		InvestorID:       view.InvestorID,
		FilterSetVersion: view.FilterSetVersion,
		GeneratedAt:      view.GeneratedAt,
		Total:            len(view.Entries),
		Offset:           offset,
		Limit:            limit,
		Entries:          []domain.ViewEntry{},
	}
	if offset < len(view.Entries) {
		end := offset + limit
		if end > len(view.Entries) {
			end = len(view.Entries)
		}
		page.Entries = append(page.Entries, view.Entries[offset:end]...)
	}
	return page, nil
}

// Drop removes the investor's view.
func (m *Materializer) Drop(ctx context.Context, investorID string) error {
	unlock := m.locks.Lock(investorID)
	defer unlock()
	return m.store.Delete(ctx, investorID)
}

// RecomputeAll rebuilds every investor's view and drops views of investors that
// no longer have a filter set. Failures of one investor do not stop the others.
func (m *Materializer) RecomputeAll(ctx context.Context, trigger string) error {
	var errs []error
	known := make(map[string]bool)
	for _, investorID := range m.filters.Investors() {
		known[investorID] = true
		if err := ctx.Err(); err != nil {
			return err
		}
		set, ok := m.filters.Snapshot(investorID)
		if !ok {
			continue
		}
		if _, err := m.RecomputeInvestor(ctx, set, trigger); err != nil {
			errs = append(errs, fmt.Errorf("investor %s: %w", investorID, err))
		}
	}

	for _, investorID := range m.store.Investors() {
		if known[investorID] {
			continue
		}
		if err := m.Drop(ctx, investorID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Materializer) publish(ctx context.Context, view *domain.OpportunityView, results []*domain.EvaluationResult, trigger string, fullScan bool, res *PublishResult) error {
	unlock := m.locks.Lock(view.InvestorID)
	existing, hasExisting := m.store.Get(view.InvestorID)
	reason := m.staleReason(view.InvestorID, view.FilterSetVersion, existing, hasExisting)
	if reason == "" && fullScan && hasExisting &&
		existing.FilterSetVersion == view.FilterSetVersion &&
		existing.CatalogRevision > view.CatalogRevision {
		reason = ReasonNewerCatalog
	}
	if reason != "" {
		unlock()
		m.discarded(view.InvestorID, view.FilterSetVersion, trigger, reason)
		res.Reason = reason
		return nil
	}

	err := m.commit(ctx, view, results)
	unlock()
	if err != nil {
		return err
	}

	res.Published = true
	res.View = view
	m.published(view, trigger)
	return nil
}

// staleReason decides whether a job built against jobVersion may still publish.
// Must be called inside the investor's section.
func (m *Materializer) staleReason(investorID string, jobVersion int64, existing *domain.OpportunityView, hasExisting bool) string {
	current, ok := m.filters.CurrentVersion(investorID)
	if !ok {
		return ReasonInvestorRemoved
	}
	if jobVersion < current {
		return ReasonSupersededFilter
	}
	if hasExisting && existing.FilterSetVersion > jobVersion {
		return ReasonNewerView
	}
	return ""
}

func (m *Materializer) commit(ctx context.Context, view *domain.OpportunityView, results []*domain.EvaluationResult) error {
	if len(results) > 0 {
		if _, err := m.ledger.Record(ctx, results...); err != nil {
			return fmt.Errorf("failed to record results for %s: %w", view.InvestorID, err)
		}
	}
	if err := m.store.Put(ctx, view); err != nil {
		return err
	}
	return nil
}

func (m *Materializer) published(view *domain.OpportunityView, trigger string) {
	if m.events != nil {
		m.events.EmitTyped(moduleName, &events.ViewPublishedData{
			InvestorID:       view.InvestorID,
			FilterSetVersion: view.FilterSetVersion,
			CatalogRevision:  view.CatalogRevision,
			Visible:          len(view.Entries),
			Trigger:          trigger,
			GeneratedAt:      view.GeneratedAt,
		})
	}
	if m.archiver != nil {
		m.archiver.Archive(context.Background(), view)
	}
}

func (m *Materializer) discarded(investorID string, jobVersion int64, trigger, reason string) {
	current, _ := m.filters.CurrentVersion(investorID)
	m.log.Debug().
		Str("investor_id", investorID).
		Int64("job_version", jobVersion).
		Int64("current_version", current).
		Str("trigger", trigger).
		Str("reason", reason).
		Msg("View discarded")

	if m.events != nil {
		m.events.EmitTyped(moduleName, &events.ViewDiscardedData{
			InvestorID:     investorID,
			JobVersion:     jobVersion,
			CurrentVersion: current,
			Trigger:        trigger,
			Reason:         reason,
		})
	}
}

// mergeDeal returns a new view equal to base with deal's entry replaced by the
// outcome of result. A nil result removes the deal.
func mergeDeal(base *domain.OpportunityView, deal *domain.Deal, result *domain.EvaluationResult, now time.Time) *domain.OpportunityView {
	view := &domain.OpportunityView{
		InvestorID:       base.InvestorID,
		FilterSetVersion: base.FilterSetVersion,
		CatalogRevision:  base.CatalogRevision,
		GeneratedAt:      now,
		Entries:          make([]domain.ViewEntry, 0, len(base.Entries)+1),
		DealRevisions:    make(map[string]int64, len(base.DealRevisions)+1),
	}
	for id, rev := range base.DealRevisions {
		view.DealRevisions[id] = rev
	}
	for _, e := range base.Entries {
		if e.DealID != deal.ID {
			view.Entries = append(view.Entries, e)
		}
	}

	if result != nil {
		view.DealRevisions[deal.ID] = deal.Revision
		if deal.Revision > view.CatalogRevision {
			view.CatalogRevision = deal.Revision
		}
		if result.Terminal == domain.StateVisible {
			view.Entries = append(view.Entries, domain.ViewEntry{
				DealID:      deal.ID,
				Score:       result.Score,
				SubmittedAt: deal.SubmittedAt,
			})
		}
	}
	SortEntries(view.Entries)
	return view
}

// SortEntries orders board entries by score descending (undefined scores last), then by
// submission time, then by id.
func SortEntries(entries []domain.ViewEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Score != nil && b.Score == nil:
			return true
		case a.Score == nil && b.Score != nil:
			return false
		case a.Score != nil && *a.Score != *b.Score:
			return *a.Score > *b.Score
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.DealID < b.DealID
	})
}

// affects consults the store's dimension index when set is the investor's
// current version, and the rules in set otherwise.
func (m *Materializer) affects(set *domain.InvestorFilterSet, dims []domain.Dimension) bool {
	if current, ok := m.filters.CurrentVersion(set.InvestorID); ok && current == set.Version {
		return m.filters.References(set.InvestorID, dims)
	}
	return set.References(dims)
}

func evaluateSafely(deal domain.Deal, set *domain.InvestorFilterSet, defaultThreshold float64) (result *domain.EvaluationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic evaluating deal %s: %v", deal.ID, r)
		}
	}()
	return matching.Evaluate(deal, set, defaultThreshold), nil
}
