package evaluation

import (
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/stretchr/testify/assert"
)

func str(s string) *string { return &s }

func TestApply(t *testing.T) {
	deal := domain.Attributes{
		Industry:          "Fintech",
		Region:            "north",
		FundingAmount:     domain.Float(35),
		RevenueShareRatio: domain.Float(0.08),
		GrossMargin:       domain.Float(0.4),
	}

	tests := []struct {
		name    string
		rule    domain.FilterRule
		matched bool
		reason  string
	}{
		{
			name:    "less or equal matches",
			rule:    domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpLessOrEqual, Threshold: domain.Threshold{Number: domain.Float(50)}},
			matched: true,
		},
		{
			name:   "less or equal fails",
			rule:   domain.FilterRule{Dimension: domain.DimRevenueShareRatio, Operator: domain.OpLessOrEqual, Threshold: domain.Threshold{Number: domain.Float(0.05)}},
			reason: "revenue_share_ratio: 0.08 > 0.05",
		},
		{
			name:    "greater or equal boundary",
			rule:    domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpGreaterOrEqual, Threshold: domain.Threshold{Number: domain.Float(35)}},
			matched: true,
		},
		{
			name:   "greater or equal fails",
			rule:   domain.FilterRule{Dimension: domain.DimGrossMargin, Operator: domain.OpGreaterOrEqual, Threshold: domain.Threshold{Number: domain.Float(0.5)}},
			reason: "gross_margin: 0.4 < 0.5",
		},
		{
			name:    "text equality ignores case",
			rule:    domain.FilterRule{Dimension: domain.DimIndustry, Operator: domain.OpEqual, Threshold: domain.Threshold{Text: str("fintech")}},
			matched: true,
		},
		{
			name:   "numeric equality fails",
			rule:   domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpEqual, Threshold: domain.Threshold{Number: domain.Float(40)}},
			reason: "funding_amount: 35 != 40",
		},
		{
			name:    "in range inclusive",
			rule:    domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpInRange, Threshold: domain.Threshold{Min: domain.Float(35), Max: domain.Float(60)}},
			matched: true,
		},
		{
			name:   "outside range",
			rule:   domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpInRange, Threshold: domain.Threshold{Min: domain.Float(50), Max: domain.Float(60)}},
			reason: "funding_amount: 35 outside [50, 60]",
		},
		{
			name:    "in range list shorthand",
			rule:    domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpInRange, Threshold: domain.Threshold{Set: []string{"10", "60"}}},
			matched: true,
		},
		{
			name:   "outside range list shorthand",
			rule:   domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpInRange, Threshold: domain.Threshold{Set: []string{"40", "60"}}},
			reason: "funding_amount: 35 outside [40, 60]",
		},
		{
			name:   "blacklisted region",
			rule:   domain.FilterRule{Dimension: domain.DimRegion, Operator: domain.OpBlacklist, Threshold: domain.Threshold{Set: []string{"South", "North"}}},
			reason: "region: north is blacklisted",
		},
		{
			name:    "not blacklisted",
			rule:    domain.FilterRule{Dimension: domain.DimIndustry, Operator: domain.OpBlacklist, Threshold: domain.Threshold{Set: []string{"gambling"}}},
			matched: true,
		},
		{
			name:   "numeric blacklist",
			rule:   domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.OpBlacklist, Threshold: domain.Threshold{Set: []string{"35"}}},
			reason: "funding_amount: 35 is blacklisted",
		},
		{
			name:   "missing dimension fails",
			rule:   domain.FilterRule{Dimension: domain.DimNetMargin, Operator: domain.OpGreaterOrEqual, Threshold: domain.Threshold{Number: domain.Float(0.1)}},
			reason: "net_margin: missing",
		},
		{
			name:   "text against numeric operator fails",
			rule:   domain.FilterRule{Dimension: domain.DimIndustry, Operator: domain.OpGreaterOrEqual, Threshold: domain.Threshold{Number: domain.Float(1)}},
			reason: "industry: unsupported >= operand",
		},
		{
			name:   "unknown operator fails",
			rule:   domain.FilterRule{Dimension: domain.DimFundingAmount, Operator: domain.Operator("<"), Threshold: domain.Threshold{Number: domain.Float(1)}},
			reason: "funding_amount: unsupported < operand",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.rule, deal)
			assert.Equal(t, tt.matched, got.Matched)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.rule, got.Rule)
		})
	}
}
