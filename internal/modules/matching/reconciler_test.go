package matching

import (
	"context"
	"sort"
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeals struct {
	deals   map[string]*domain.Deal
	applied []domain.DealStatus
}

func (f *fakeDeals) Get(_ context.Context, id string) (*domain.Deal, error) {
	d, ok := f.deals[id]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeals) ApplyReconciledStatus(_ context.Context, id string, status domain.DealStatus, expectedVersion int64) (bool, error) {
	d := f.deals[id]
	if d.Version != expectedVersion {
		return false, nil
	}
	d.Status = status
	f.applied = append(f.applied, status)
	return true, nil
}

type fakeFilters map[string]*domain.InvestorFilterSet

func (f fakeFilters) Investors() []string {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f fakeFilters) Snapshot(id string) (*domain.InvestorFilterSet, bool) {
	s, ok := f[id]
	return s, ok
}

func newReconcilerFixture(t *testing.T, sets fakeFilters) (*Reconciler, *Ledger, *fakeDeals, domain.Deal) {
	t.Helper()
	ledger, _, _, _ := newTestLedger(t)
	deal := scenarioDeal()
	deals := &fakeDeals{deals: map[string]*domain.Deal{deal.ID: &deal}}
	return NewReconciler(ledger, deals, sets, zerolog.Nop()), ledger, deals, deal
}

func recordAll(t *testing.T, ledger *Ledger, deal domain.Deal, sets fakeFilters) {
	t.Helper()
	for _, id := range sets.Investors() {
		_, err := ledger.Record(context.Background(), Evaluate(deal, sets[id], 0.6))
		require.NoError(t, err)
	}
}

func strictRisk(investorID string) *domain.InvestorFilterSet {
	return testingpkg.NewFilterSet(investorID, 1, nil,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimRevenueShareRatio, domain.OpLessOrEqual, 0.05, 0)})
}

func TestReconciler_AllRiskInvestorsFail(t *testing.T) {
	sets := fakeFilters{"inv-a": strictRisk("inv-a"), "inv-b": strictRisk("inv-b")}
	rec, ledger, deals, deal := newReconcilerFixture(t, sets)
	recordAll(t, ledger, deal, sets)

	changed, err := rec.Reconcile(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusNeedsResubmission, deals.deals[deal.ID].Status)
}

func TestReconciler_VisibleToAnyoneKeepsUnderReview(t *testing.T) {
	sets := fakeFilters{
		"inv-a": strictRisk("inv-a"),
		"inv-b": testingpkg.NewFilterSet("inv-b", 1, nil, nil),
	}
	rec, ledger, deals, deal := newReconcilerFixture(t, sets)
	recordAll(t, ledger, deal, sets)

	changed, err := rec.Reconcile(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusUnderReview, deals.deals[deal.ID].Status)

	// Already under review: nothing more to do.
	changed, err = rec.Reconcile(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestReconciler_WaitsForEveryInvestor(t *testing.T) {
	sets := fakeFilters{"inv-a": strictRisk("inv-a"), "inv-b": strictRisk("inv-b")}
	rec, ledger, deals, deal := newReconcilerFixture(t, sets)

	_, err := ledger.Record(context.Background(), Evaluate(deal, sets["inv-a"], 0.6))
	require.NoError(t, err)

	v := rec.Assess(&deal)
	assert.Equal(t, 2, v.RiskInvestors)
	assert.Equal(t, 1, v.RiskFailures)
	assert.Equal(t, domain.StatusUnderReview, v.Target)

	_, err = rec.Reconcile(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, deals.deals[deal.ID].Status)
}

func TestReconciler_IgnoresStaleResults(t *testing.T) {
	sets := fakeFilters{"inv-a": strictRisk("inv-a")}
	rec, ledger, deals, deal := newReconcilerFixture(t, sets)
	recordAll(t, ledger, deal, sets)

	// The investor has since moved to version 2; the recorded result is stale.
	sets["inv-a"] = testingpkg.NewFilterSet("inv-a", 2, nil, sets["inv-a"].RiskRules)

	changed, err := rec.Reconcile(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StatusPending, deals.deals[deal.ID].Status)
}

func TestReconciler_AssessmentOnlyInvestorsNeverForceResubmission(t *testing.T) {
	sets := fakeFilters{"inv-a": testingpkg.NewFilterSet("inv-a", 1,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimFundingAmount, domain.OpGreaterOrEqual, 100, 1)}, nil)}
	rec, ledger, deals, deal := newReconcilerFixture(t, sets)
	recordAll(t, ledger, deal, sets)

	_, err := rec.Reconcile(context.Background(), deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, deals.deals[deal.ID].Status)
}

func TestReconciler_LeavesTerminalAndResubmissionDealsAlone(t *testing.T) {
	for _, status := range []domain.DealStatus{domain.StatusApproved, domain.StatusRejected, domain.StatusNeedsResubmission} {
		t.Run(string(status), func(t *testing.T) {
			sets := fakeFilters{"inv-a": testingpkg.NewFilterSet("inv-a", 1, nil, nil)}
			rec, ledger, deals, deal := newReconcilerFixture(t, sets)
			recordAll(t, ledger, deal, sets)
			deals.deals[deal.ID].Status = status

			changed, err := rec.Reconcile(context.Background(), deal.ID)
			require.NoError(t, err)
			assert.False(t, changed)
			assert.Empty(t, deals.applied)
		})
	}
}
