package matching

import (
	"context"
	"fmt"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/rs/zerolog"
)

// DealStatusStore is the part of the catalog the reconciler needs.
type DealStatusStore interface {
	Get(ctx context.Context, id string) (*domain.Deal, error)
	ApplyReconciledStatus(ctx context.Context, id string, status domain.DealStatus, expectedVersion int64) (bool, error)
}

// FilterSource is the part of the filter store the reconciler needs.
type FilterSource interface {
	Investors() []string
	Snapshot(investorID string) (*domain.InvestorFilterSet, bool)
}

// Verdict summarizes every investor's current outcome for one deal.
type Verdict struct {
	DealID        string            `json:"deal_id"`
	DealVersion   int64             `json:"deal_version"`
	Investors     int               `json:"investors"`
	Current       int               `json:"current"`
	Visible       int               `json:"visible"`
	RiskInvestors int               `json:"risk_investors"`
	RiskFailures  int               `json:"risk_failures"`
	Target        domain.DealStatus `json:"target,omitempty"`
}

// Reconciler derives a deal's global status from per-investor outcomes.
//
// A deal moves to needs_resubmission only when every investor has a current
// result, every investor with risk rules failed it on risk, and no investor
// sees it. Otherwise a pending deal with at least one current result moves to
// under_review. Deals past review are never touched, and needs_resubmission is
// only left through an applicant update.
type Reconciler struct {
	ledger  *Ledger
	deals   DealStatusStore
	filters FilterSource
	log     zerolog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(ledger *Ledger, deals DealStatusStore, filters FilterSource, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		ledger:  ledger,
		deals:   deals,
		filters: filters,
		log:     log.With().Str("component", "reconciler").Logger(),
	}
}

// Assess computes the collective verdict for a deal without changing anything.
func (r *Reconciler) Assess(deal *domain.Deal) Verdict {
	v := Verdict{DealID: deal.ID, DealVersion: deal.Version}

	for _, investorID := range r.filters.Investors() {
		set, ok := r.filters.Snapshot(investorID)
		if !ok {
			continue
		}
		v.Investors++

		hasRisk := set.HasRiskRules()
		if hasRisk {
			v.RiskInvestors++
		}

		res, ok := r.ledger.Latest(deal.ID, investorID)
		if !ok || res.FilterSetVersion != set.Version || res.DealVersion != deal.Version {
			continue
		}
		v.Current++

		switch res.Terminal {
		case domain.StateVisible:
			v.Visible++
		case domain.StateNeedsResubmission:
			if hasRisk {
				v.RiskFailures++
			}
		}
	}

	switch {
	case v.Investors > 0 && v.Current == v.Investors && v.Visible == 0 &&
		v.RiskInvestors > 0 && v.RiskFailures == v.RiskInvestors:
		v.Target = domain.StatusNeedsResubmission
	case v.Current > 0 && deal.Status == domain.StatusPending:
		v.Target = domain.StatusUnderReview
	}
	return v
}

// Reconcile applies the collective verdict to one deal. Returns whether the
// deal's status changed.
func (r *Reconciler) Reconcile(ctx context.Context, dealID string) (bool, error) {
	deal, err := r.deals.Get(ctx, dealID)
	if err != nil {
		return false, fmt.Errorf("failed to load deal %s: %w", dealID, err)
	}
	if deal.Status != domain.StatusPending && deal.Status != domain.StatusUnderReview {
		return false, nil
	}

	v := r.Assess(deal)
	if v.Target == "" || v.Target == deal.Status {
		return false, nil
	}

	changed, err := r.deals.ApplyReconciledStatus(ctx, deal.ID, v.Target, deal.Version)
	if err != nil {
		return false, fmt.Errorf("failed to apply status to %s: %w", dealID, err)
	}
	if changed {
		r.log.Info().
			Str("deal_id", deal.ID).
			Str("from", string(deal.Status)).
			Str("to", string(v.Target)).
			Int("investors", v.Investors).
			Int("risk_failures", v.RiskFailures).
			Msg("Deal status reconciled")
	}
	return changed, nil
}
