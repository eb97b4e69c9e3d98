package testing

import (
	"fmt"
	"time"

	"github.com/aristath/dealflow/internal/domain"
)

// FixtureEpoch is the submission time of the first sample deal. Each later
// deal is submitted one day after the previous one.
var FixtureEpoch = time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

type sampleDeal struct {
	industry     string
	region       string
	funding      float64
	periodMonths float64
	revenueShare float64
	monthly      float64
	grossMargin  float64
	netMargin    float64
}

var sampleDeals = []sampleDeal{
	{"Food & Beverage", "Riyadh", 35, 12, 0.08, 42, 0.38, 0.12},
	{"Retail", "Jeddah", 80, 18, 0.05, 95, 0.31, 0.09},
	{"Technology", "Riyadh", 120, 24, 0.04, 160, 0.62, 0.21},
	{"Healthcare", "Dammam", 60, 12, 0.06, 70, 0.44, 0.15},
	{"Logistics", "Riyadh", 150, 36, 0.03, 210, 0.27, 0.07},
	{"Education", "Makkah", 85, 24, 0.05, 88, 0.52, 0.18},
	{"Food & Beverage", "Jeddah", 55, 12, 0.07, 61, 0.35, 0.10},
	{"Manufacturing", "Dammam", 200, 48, 0.03, 240, 0.24, 0.06},
	{"Technology", "Jeddah", 180, 36, 0.04, 205, 0.58, 0.19},
	{"Real Estate", "Riyadh", 300, 60, 0.02, 310, 0.41, 0.16},
}

// FixtureDealID returns the id of the n-th sample deal (1-based).
func FixtureDealID(n int) string {
	return fmt.Sprintf("DGT-2026-%03d", n)
}

// NewDealFixtures returns the ten sample deals DGT-2026-001 through 010, all
// pending, with funding amounts 35, 80, 120, 60, 150, 85, 55, 200, 180, 300.
func NewDealFixtures() []domain.Deal {
	deals := make([]domain.Deal, 0, len(sampleDeals))
	for i, s := range sampleDeals {
		submitted := FixtureEpoch.Add(time.Duration(i) * 24 * time.Hour)
		deals = append(deals, domain.Deal{
			ID:          FixtureDealID(i + 1),
			ApplicantID: fmt.Sprintf("APP-%03d", i+1),
			Attributes: domain.Attributes{
				Industry:               s.industry,
				Region:                 s.region,
				FundingAmount:          domain.Float(s.funding),
				InvestmentPeriodMonths: domain.Float(s.periodMonths),
				RevenueShareRatio:      domain.Float(s.revenueShare),
				MonthlyRevenue:         domain.Float(s.monthly),
				AnnualRevenue:          domain.Float(s.monthly * 12),
				GrossMargin:            domain.Float(s.grossMargin),
				NetMargin:              domain.Float(s.netMargin),
			},
			Status:      domain.StatusPending,
			Version:     1,
			Revision:    int64(i + 1),
			SubmittedAt: submitted,
			UpdatedAt:   submitted,
		})
	}
	return deals
}

// NewFixtureDeal returns a single pending deal with the given id and funding amount.
func NewFixtureDeal(id string, funding float64) domain.Deal {
	return domain.Deal{
		ID: id,
		Attributes: domain.Attributes{
			Industry:          "Retail",
			Region:            "Riyadh",
			FundingAmount:     domain.Float(funding),
			RevenueShareRatio: domain.Float(0.05),
		},
		Status:      domain.StatusPending,
		Version:     1,
		Revision:    1,
		SubmittedAt: FixtureEpoch,
		UpdatedAt:   FixtureEpoch,
	}
}

// NumberRule builds a rule comparing a numeric dimension against n.
func NumberRule(dim domain.Dimension, op domain.Operator, n, weight float64) domain.FilterRule {
	return domain.FilterRule{
		Dimension: dim,
		Operator:  op,
		Threshold: domain.Threshold{Number: domain.Float(n)},
		Weight:    weight,
	}
}

// RangeRule builds an in_range rule.
func RangeRule(dim domain.Dimension, min, max, weight float64) domain.FilterRule {
	return domain.FilterRule{
		Dimension: dim,
		Operator:  domain.OpInRange,
		Threshold: domain.Threshold{Min: domain.Float(min), Max: domain.Float(max)},
		Weight:    weight,
	}
}

// BlacklistRule builds a blacklist rule over values.
func BlacklistRule(dim domain.Dimension, values ...string) domain.FilterRule {
	return domain.FilterRule{
		Dimension: dim,
		Operator:  domain.OpBlacklist,
		Threshold: domain.Threshold{Set: values},
	}
}

// NewFilterSet returns a filter set at the given version.
func NewFilterSet(investorID string, version int64, assessment, risk []domain.FilterRule) *domain.InvestorFilterSet {
	return &domain.InvestorFilterSet{
		InvestorID:      investorID,
		Version:         version,
		AssessmentRules: assessment,
		RiskRules:       risk,
		UpdatedAt:       FixtureEpoch,
	}
}
