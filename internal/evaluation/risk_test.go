package evaluation

import (
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCheckRisk_CollectsAllFailures(t *testing.T) {
	deal := domain.Attributes{
		Region:            "south",
		FundingAmount:     domain.Float(120),
		RevenueShareRatio: domain.Float(0.08),
	}
	rules := []domain.FilterRule{
		le(domain.DimRevenueShareRatio, 0.05, 0),
		le(domain.DimFundingAmount, 100, 0),
		{Dimension: domain.DimRegion, Operator: domain.OpBlacklist, Threshold: domain.Threshold{Set: []string{"east"}}},
		ge(domain.DimNetMargin, 0.05, 0),
		ge(domain.DimFundingAmount, 200, 0),
	}

	res := CheckRisk(deal, rules)

	assert.False(t, res.Passed)
	assert.Equal(t, []string{
		"revenue_share_ratio: 0.08 > 0.05",
		"funding_amount: 120 > 100",
		"net_margin: missing",
		"funding_amount: 120 < 200",
	}, res.Reasons())
	assert.Equal(t,
		[]domain.Dimension{domain.DimRevenueShareRatio, domain.DimFundingAmount, domain.DimNetMargin},
		res.FailingDimensions())
	assert.Len(t, res.Outcomes, 5)
}

func TestCheckRisk_NoRulesPasses(t *testing.T) {
	res := CheckRisk(domain.Attributes{}, nil)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Reasons())
	assert.Empty(t, res.FailingDimensions())
}

func TestSortedDimensions(t *testing.T) {
	got := SortedDimensions([]domain.Dimension{domain.DimRevenueShareRatio, domain.DimFundingAmount, domain.DimRevenueShareRatio})
	assert.Equal(t, []domain.Dimension{domain.DimFundingAmount, domain.DimRevenueShareRatio}, got)
}
