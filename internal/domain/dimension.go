package domain

// Dimension names a deal attribute a rule can reference.
type Dimension string

const (
	DimIndustry               Dimension = "industry"
	DimRegion                 Dimension = "region"
	DimFundingAmount          Dimension = "funding_amount"
	DimInvestmentPeriodMonths Dimension = "investment_period_months"
	DimRevenueShareRatio      Dimension = "revenue_share_ratio"
	DimMonthlyRevenue         Dimension = "monthly_revenue"
	DimAnnualRevenue          Dimension = "annual_revenue"
	DimGrossMargin            Dimension = "gross_margin"
	DimNetMargin              Dimension = "net_margin"
)

var textDimensions = map[Dimension]bool{
	DimIndustry: true,
	DimRegion:   true,
}

var allDimensions = []Dimension{
	DimIndustry,
	DimRegion,
	DimFundingAmount,
	DimInvestmentPeriodMonths,
	DimRevenueShareRatio,
	DimMonthlyRevenue,
	DimAnnualRevenue,
	DimGrossMargin,
	DimNetMargin,
}

// AllDimensions returns every known dimension in catalog order.
func AllDimensions() []Dimension {
	out := make([]Dimension, len(allDimensions))
	copy(out, allDimensions)
	return out
}

// Known reports whether d is a recognised dimension.
func (d Dimension) Known() bool {
	for _, known := range allDimensions {
		if d == known {
			return true
		}
	}
	return false
}

// IsText reports whether d holds free text rather than a number.
func (d Dimension) IsText() bool {
	return textDimensions[d]
}
