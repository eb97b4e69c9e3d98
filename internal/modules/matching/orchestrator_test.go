package matching

import (
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioDeal() domain.Deal {
	return testingpkg.NewDealFixtures()[0]
}

func TestEvaluate_AssessmentPassIsVisible(t *testing.T) {
	set := testingpkg.NewFilterSet("inv-1", 1,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimFundingAmount, domain.OpLessOrEqual, 50, 1)}, nil)

	res := Evaluate(scenarioDeal(), set, 0.6)

	assert.Equal(t, domain.StateVisible, res.Terminal)
	require.NotNil(t, res.Score)
	assert.Equal(t, 1.0, *res.Score)
	assert.Equal(t, int64(1), res.FilterSetVersion)
	assert.Equal(t, int64(1), res.DealVersion)

	require.Len(t, res.Stages, 3)
	assert.Equal(t, domain.VerdictPass, res.Stage(domain.StageAssessment).Verdict)
	assert.Equal(t, domain.VerdictPass, res.Stage(domain.StageRisk).Verdict)
	assert.Equal(t, domain.VerdictVisible, res.Stage(domain.StageVisibility).Verdict)
	assert.Empty(t, res.ID, "ids are assigned when recorded")
}

func TestEvaluate_RiskFailureNeedsResubmission(t *testing.T) {
	set := testingpkg.NewFilterSet("inv-1", 2,
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimFundingAmount, domain.OpLessOrEqual, 50, 1)},
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimRevenueShareRatio, domain.OpLessOrEqual, 0.05, 0)})

	res := Evaluate(scenarioDeal(), set, 0.6)

	assert.Equal(t, domain.StateNeedsResubmission, res.Terminal)
	risk := res.Stage(domain.StageRisk)
	require.NotNil(t, risk)
	assert.Equal(t, domain.VerdictFail, risk.Verdict)
	assert.Equal(t, []string{"revenue_share_ratio: 0.08 > 0.05"}, risk.Reasons)
	assert.Equal(t, []domain.Dimension{domain.DimRevenueShareRatio}, risk.FailingDimensions)
	assert.Equal(t, domain.VerdictHidden, res.Stage(domain.StageVisibility).Verdict)
}

func TestEvaluate_AssessmentFailureIsSilent(t *testing.T) {
	set := testingpkg.NewFilterSet("inv-1", 1,
		[]domain.FilterRule{
			testingpkg.NumberRule(domain.DimFundingAmount, domain.OpGreaterOrEqual, 100, 0.5),
			testingpkg.NumberRule(domain.DimGrossMargin, domain.OpGreaterOrEqual, 0.3, 0.25),
		},
		[]domain.FilterRule{testingpkg.NumberRule(domain.DimRevenueShareRatio, domain.OpLessOrEqual, 0.05, 0)})

	res := Evaluate(scenarioDeal(), set, 0.6)

	assert.Equal(t, domain.StateNotVisible, res.Terminal)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 1.0/3.0, *res.Score, 1e-9)
	assert.Equal(t, []string{"funding_amount: 35 < 100"}, res.Stage(domain.StageAssessment).Reasons)
	assert.Equal(t, domain.VerdictSkipped, res.Stage(domain.StageRisk).Verdict, "risk never runs after an assessment failure")
}

func TestEvaluate_NoRulesIsVisibleWithoutScore(t *testing.T) {
	res := Evaluate(scenarioDeal(), testingpkg.NewFilterSet("inv-1", 1, nil, nil), 0.6)

	assert.Equal(t, domain.StateVisible, res.Terminal)
	assert.Nil(t, res.Score)
	assert.Nil(t, res.Stage(domain.StageAssessment).Score)
}

func TestEvaluate_RejectedShortCircuits(t *testing.T) {
	deal := scenarioDeal()
	deal.Status = domain.StatusRejected

	res := Evaluate(deal, testingpkg.NewFilterSet("inv-1", 1, nil, nil), 0.6)

	assert.Equal(t, domain.StateRejected, res.Terminal)
	assert.Equal(t, domain.VerdictSkipped, res.Stage(domain.StageAssessment).Verdict)
	assert.Equal(t, domain.VerdictSkipped, res.Stage(domain.StageRisk).Verdict)
	assert.Equal(t, []string{"deal status is rejected"}, res.Stage(domain.StageVisibility).Reasons)
}

func TestEvaluate_MissingDimensionFailsRule(t *testing.T) {
	deal := scenarioDeal()
	deal.NetMargin = nil

	set := testingpkg.NewFilterSet("inv-1", 1, nil,
		[]domain.FilterRule{
			testingpkg.NumberRule(domain.DimNetMargin, domain.OpGreaterOrEqual, 0.05, 0),
			testingpkg.NumberRule(domain.DimRevenueShareRatio, domain.OpLessOrEqual, 0.05, 0),
		})

	res := Evaluate(deal, set, 0.6)

	assert.Equal(t, domain.StateNeedsResubmission, res.Terminal)
	risk := res.Stage(domain.StageRisk)
	assert.Equal(t, []string{"net_margin: missing", "revenue_share_ratio: 0.08 > 0.05"}, risk.Reasons)
	assert.Equal(t, []domain.Dimension{domain.DimNetMargin, domain.DimRevenueShareRatio}, risk.FailingDimensions)
}

func TestEvaluate_UsesInvestorThreshold(t *testing.T) {
	set := testingpkg.NewFilterSet("inv-1", 1,
		[]domain.FilterRule{
			testingpkg.NumberRule(domain.DimFundingAmount, domain.OpLessOrEqual, 50, 0.5),
			testingpkg.NumberRule(domain.DimGrossMargin, domain.OpGreaterOrEqual, 0.5, 0.5),
		}, nil)

	assert.Equal(t, domain.StateNotVisible, Evaluate(scenarioDeal(), set, 0.6).Terminal)

	set.PassingThreshold = domain.Float(0.5)
	assert.Equal(t, domain.StateVisible, Evaluate(scenarioDeal(), set, 0.6).Terminal)
}
