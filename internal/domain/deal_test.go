package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDealStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to DealStatus
		allowed  bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusNeedsResubmission, true},
		{StatusPending, StatusRejected, true},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusPending, false},
		{StatusNeedsResubmission, StatusPending, true},
		{StatusNeedsResubmission, StatusUnderReview, false},
		{StatusNeedsResubmission, StatusRejected, true},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDealStatus_Flags(t *testing.T) {
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())

	assert.True(t, StatusNeedsResubmission.AcceptsApplicantUpdate())
	assert.False(t, StatusRejected.AcceptsApplicantUpdate())

	assert.True(t, StatusUnderReview.Valid())
	assert.False(t, DealStatus("archived").Valid())
}

func TestAttributes_Value(t *testing.T) {
	attrs := Attributes{
		Industry:          "fintech",
		FundingAmount:     Float(35),
		RevenueShareRatio: Float(0.08),
	}

	v, ok := attrs.Value(DimIndustry)
	assert.True(t, ok)
	assert.Equal(t, "fintech", v.String())

	v, ok = attrs.Value(DimRevenueShareRatio)
	assert.True(t, ok)
	assert.Equal(t, "0.08", v.String())

	_, ok = attrs.Value(DimRegion)
	assert.False(t, ok, "empty text is missing")

	_, ok = attrs.Value(DimNetMargin)
	assert.False(t, ok, "nil number is missing")

	_, ok = attrs.Value(Dimension("valuation"))
	assert.False(t, ok)
}

func TestAttributes_ChangedDimensions(t *testing.T) {
	before := Attributes{Industry: "retail", FundingAmount: Float(80), NetMargin: Float(0.1)}
	after := Attributes{Industry: "retail", FundingAmount: Float(60), Region: "north"}

	assert.ElementsMatch(t,
		[]Dimension{DimRegion, DimFundingAmount, DimNetMargin},
		before.ChangedDimensions(after))
	assert.Empty(t, before.ChangedDimensions(before))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "35", FormatNumber(35))
	assert.Equal(t, "0.05", FormatNumber(0.05))
	assert.Equal(t, "1500000", FormatNumber(1_500_000))
}
