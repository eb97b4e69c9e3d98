package domain

import (
	"strconv"
	"time"
)

// DealStatus is the applicant-global lifecycle status of a deal.
type DealStatus string

const (
	StatusPending           DealStatus = "pending"
	StatusUnderReview       DealStatus = "under_review"
	StatusNeedsResubmission DealStatus = "needs_resubmission"
	StatusApproved          DealStatus = "approved"
	StatusRejected          DealStatus = "rejected"
)

// dealTransitions lists the allowed forward moves. needs_resubmission -> pending
// is the only backward edge and is reserved for applicant updates.
var dealTransitions = map[DealStatus][]DealStatus{
	StatusPending:           {StatusUnderReview, StatusNeedsResubmission, StatusApproved, StatusRejected},
	StatusUnderReview:       {StatusNeedsResubmission, StatusApproved, StatusRejected},
	StatusNeedsResubmission: {StatusPending, StatusRejected},
	StatusApproved:          nil,
	StatusRejected:          nil,
}

// Valid reports whether s is a known status.
func (s DealStatus) Valid() bool {
	_, ok := dealTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s DealStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether s -> next is permitted.
func (s DealStatus) CanTransitionTo(next DealStatus) bool {
	for _, allowed := range dealTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsApplicantUpdate reports whether the applicant may still edit attributes.
func (s DealStatus) AcceptsApplicantUpdate() bool {
	return s == StatusPending || s == StatusUnderReview || s == StatusNeedsResubmission
}

// Attributes are the applicant-supplied facts a filter rule can reference.
// Nil numbers and empty strings mean the applicant did not provide the value.
type Attributes struct {
	Industry               string   `json:"industry,omitempty" yaml:"industry,omitempty" msgpack:"industry,omitempty"`
	Region                 string   `json:"region,omitempty" yaml:"region,omitempty" msgpack:"region,omitempty"`
	FundingAmount          *float64 `json:"funding_amount,omitempty" yaml:"funding_amount,omitempty" msgpack:"funding_amount,omitempty"`
	InvestmentPeriodMonths *float64 `json:"investment_period_months,omitempty" yaml:"investment_period_months,omitempty" msgpack:"investment_period_months,omitempty"`
	RevenueShareRatio      *float64 `json:"revenue_share_ratio,omitempty" yaml:"revenue_share_ratio,omitempty" msgpack:"revenue_share_ratio,omitempty"`
	MonthlyRevenue         *float64 `json:"monthly_revenue,omitempty" yaml:"monthly_revenue,omitempty" msgpack:"monthly_revenue,omitempty"`
	AnnualRevenue          *float64 `json:"annual_revenue,omitempty" yaml:"annual_revenue,omitempty" msgpack:"annual_revenue,omitempty"`
	GrossMargin            *float64 `json:"gross_margin,omitempty" yaml:"gross_margin,omitempty" msgpack:"gross_margin,omitempty"`
	NetMargin              *float64 `json:"net_margin,omitempty" yaml:"net_margin,omitempty" msgpack:"net_margin,omitempty"`
}

// Deal is one applicant submission.
//
// Version counts applicant submissions and increases on every attribute update.
// Revision is the catalog-wide write counter value of the last write to this deal,
// including status changes.
type Deal struct {
	ID          string     `json:"id" yaml:"id"`
	ApplicantID string     `json:"applicant_id,omitempty" yaml:"applicant_id,omitempty"`
	Attributes  `yaml:",inline"`
	Status      DealStatus `json:"status" yaml:"status,omitempty"`
	Version     int64      `json:"version" yaml:"-"`
	Revision    int64      `json:"revision" yaml:"-"`
	SubmittedAt time.Time  `json:"submitted_date" yaml:"submitted_date"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"-"`
}

// Value is a single dimension value extracted from a deal.
type Value struct {
	Number float64
	Text   string
	IsText bool
}

// String renders the value the way reasons print it.
func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return FormatNumber(v.Number)
}

// FormatNumber prints a float in its shortest exact form (0.08, 35, 1500000).
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Value returns the deal's value for dim; ok is false when the applicant left it out.
func (a Attributes) Value(dim Dimension) (Value, bool) {
	switch dim {
	case DimIndustry:
		return Value{Text: a.Industry, IsText: true}, a.Industry != ""
	case DimRegion:
		return Value{Text: a.Region, IsText: true}, a.Region != ""
	}

	var n *float64
	switch dim {
	case DimFundingAmount:
		n = a.FundingAmount
	case DimInvestmentPeriodMonths:
		n = a.InvestmentPeriodMonths
	case DimRevenueShareRatio:
		n = a.RevenueShareRatio
	case DimMonthlyRevenue:
		n = a.MonthlyRevenue
	case DimAnnualRevenue:
		n = a.AnnualRevenue
	case DimGrossMargin:
		n = a.GrossMargin
	case DimNetMargin:
		n = a.NetMargin
	}
	if n == nil {
		return Value{}, false
	}
	return Value{Number: *n}, true
}

// ChangedDimensions lists the dimensions whose values differ between a and b.
func (a Attributes) ChangedDimensions(b Attributes) []Dimension {
	var changed []Dimension
	for _, dim := range AllDimensions() {
		av, aok := a.Value(dim)
		bv, bok := b.Value(dim)
		if aok != bok || av != bv {
			changed = append(changed, dim)
		}
	}
	return changed
}

// Float returns a pointer to f. Handy for building attribute literals.
func Float(f float64) *float64 {
	return &f
}
