package filters

import (
	"context"
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/events"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *Repository, *testingpkg.EventRecorder) {
	t.Helper()
	db := testingpkg.NewTestDB(t, "filters")
	manager, rec := testingpkg.NewEventManager()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	svc := NewService(repo, NewTracker(), NewDimensionIndex(), manager, 0.6, zerolog.Nop())
	return svc, repo, rec
}

func TestService_ReplaceBumpsVersion(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	first, err := svc.Replace(ctx, testingpkg.NewFilterSet("inv-1", 0,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimFundingAmount, domain.OpLessOrEqual, 50, 1)}, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	second, err := svc.Replace(ctx, testingpkg.NewFilterSet("inv-1", 99,
		first.AssessmentRules,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimRevenueShareRatio, domain.OpLessOrEqual, 0.05, 0)}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version, "caller supplied versions are ignored")

	version, ok := svc.CurrentVersion("inv-1")
	require.True(t, ok)
	assert.Equal(t, int64(2), version)

	changes := rec.OfType(events.FilterSetChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, int64(2), changes[1].(*events.FilterSetChangedData).Version)

	got, err := svc.Get("inv-1")
	require.NoError(t, err)
	require.Len(t, got.RiskRules, 1)
	assert.Equal(t, 0.6, got.Threshold(svc.DefaultThreshold()))
}

func TestService_ReplaceRejectsInvalidWithoutWriting(t *testing.T) {
	svc, repo, rec := newTestService(t)
	ctx := context.Background()

	_, err := svc.Replace(ctx, testingpkg.NewFilterSet("inv-1", 0, nil,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimRevenueShareRatio, "<", 0.05, 0)}))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = repo.Get(ctx, "inv-1")
	assert.ErrorIs(t, err, domain.ErrFilterSetNotFound)
	assert.Empty(t, rec.All())
}

func TestService_HistoryAndDelete(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	for _, limit := range []float64{50, 60, 70} {
		_, err := svc.Replace(ctx, testingpkg.NewFilterSet("inv-1", 0,
			[]domain.FilterRule{testingpkg.NumberRule(domain.DimFundingAmount, domain.OpLessOrEqual, limit, 1)}, nil))
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, "inv-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(3), history[0].Version)
	assert.Equal(t, 70.0, *history[0].AssessmentRules[0].Threshold.Number)
	assert.Equal(t, 50.0, *history[2].AssessmentRules[0].Threshold.Number)

	require.NoError(t, svc.Delete(ctx, "inv-1"))
	_, ok := svc.CurrentVersion("inv-1")
	assert.False(t, ok)
	assert.Empty(t, svc.InterestedInvestors([]domain.Dimension{domain.DimFundingAmount}))
	require.Len(t, rec.OfType(events.FilterSetDeleted), 1)

	assert.ErrorIs(t, svc.Delete(ctx, "inv-1"), domain.ErrFilterSetNotFound)

	recreated, err := svc.Replace(ctx, testingpkg.NewFilterSet("inv-1", 0, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int64(4), recreated.Version, "versions never repeat after a delete")
}

func TestService_LoadRestoresTrackerAndIndex(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Replace(ctx, testingpkg.NewFilterSet("inv-1", 0,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimFundingAmount, domain.OpLessOrEqual, 50, 1)},
		[]domain.FilterRule{testingpkg.BlacklistRule(domain.DimRegion, "Makkah")}))
	require.NoError(t, err)
	_, err = svc.Replace(ctx, testingpkg.NewFilterSet("inv-2", 0, nil, nil))
	require.NoError(t, err)

	manager, _ := testingpkg.NewEventManager()
	restarted := NewService(repo, NewTracker(), NewDimensionIndex(), manager, 0.6, zerolog.Nop())
	require.NoError(t, restarted.Load(ctx))

	assert.Equal(t, []string{"inv-1", "inv-2"}, restarted.Investors())
	assert.True(t, restarted.References("inv-1", []domain.Dimension{domain.DimRegion}))
	assert.False(t, restarted.References("inv-2", []domain.Dimension{domain.DimRegion}))
	assert.Equal(t, []string{"inv-1"}, restarted.InterestedInvestors([]domain.Dimension{domain.DimFundingAmount, domain.DimNetMargin}))

	set, ok := restarted.Snapshot("inv-2")
	require.True(t, ok)
	assert.True(t, set.IsEmpty())
}

func TestTracker_IgnoresOlderVersions(t *testing.T) {
	tracker := NewTracker()
	tracker.Set(testingpkg.NewFilterSet("inv-1", 3, nil, nil))
	tracker.Set(testingpkg.NewFilterSet("inv-1", 2, nil, nil))

	version, ok := tracker.Version("inv-1")
	require.True(t, ok)
	assert.Equal(t, int64(3), version)
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tracker := NewTracker()
	tracker.Set(testingpkg.NewFilterSet("inv-1", 1,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimFundingAmount, domain.OpLessOrEqual, 50, 1)}, nil))

	snap, _ := tracker.Snapshot("inv-1")
	*snap.AssessmentRules[0].Threshold.Number = 999

	again, _ := tracker.Snapshot("inv-1")
	assert.Equal(t, 50.0, *again.AssessmentRules[0].Threshold.Number)
}
