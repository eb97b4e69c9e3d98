package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleResult() *EvaluationResult {
	return &EvaluationResult{
		ID:               "a",
		DealID:           "DGT-2026-001",
		InvestorID:       "inv-1",
		DealVersion:      1,
		FilterSetVersion: 2,
		Terminal:         StateNeedsResubmission,
		Score:            Float(1),
		Stages: []StageResult{
			{Stage: StageAssessment, Verdict: VerdictPass, Score: Float(1), Reasons: []string{}},
			{Stage: StageRisk, Verdict: VerdictFail, Reasons: []string{"revenue_share_ratio: 0.08 > 0.05"}},
			{Stage: StageVisibility, Verdict: VerdictHidden, Reasons: []string{}},
		},
		CreatedAt: time.Now(),
	}
}

func TestEvaluationResult_SameOutcome(t *testing.T) {
	a := sampleResult()
	b := sampleResult()
	b.ID = "b"
	b.CreatedAt = a.CreatedAt.Add(time.Minute)
	b.CarriedForward = true
	assert.True(t, a.SameOutcome(b))

	c := sampleResult()
	c.FilterSetVersion = 3
	assert.False(t, a.SameOutcome(c))

	d := sampleResult()
	d.Stages[1].Reasons = []string{"revenue_share_ratio: 0.09 > 0.05"}
	assert.False(t, a.SameOutcome(d))

	e := sampleResult()
	e.Score = nil
	assert.False(t, a.SameOutcome(e))

	var none *EvaluationResult
	assert.False(t, a.SameOutcome(none))
	assert.True(t, none.SameOutcome(nil))
}

func TestEvaluationResult_Stage(t *testing.T) {
	r := sampleResult()
	assert.Equal(t, VerdictFail, r.Stage(StageRisk).Verdict)
	assert.Nil(t, r.Stage(Stage("pricing")))
	assert.True(t, StateNeedsResubmission.IsTerminal())
	assert.False(t, StateAssessed.IsTerminal())
}

func TestResubmissionEvent_NoticeHidesInvestor(t *testing.T) {
	ev := ResubmissionEvent{
		ID:                "evt-1",
		DealID:            "DGT-2026-001",
		InvestorID:        "inv-secret",
		Reasons:           []string{"revenue_share_ratio: 0.08 > 0.05"},
		FailingDimensions: []Dimension{DimRevenueShareRatio},
		Timestamp:         time.Unix(1700000000, 0),
	}

	n := ev.Notice()
	assert.Equal(t, "DGT-2026-001", n.DealID)
	assert.Equal(t, []Dimension{DimRevenueShareRatio}, n.FailingDimensions)

	n.FailingDimensions[0] = DimRegion
	assert.Equal(t, DimRevenueShareRatio, ev.FailingDimensions[0])
}

func TestResubmissionEvent_NoticeSortsDimensions(t *testing.T) {
	ev := ResubmissionEvent{FailingDimensions: []Dimension{DimRevenueShareRatio, DimFundingAmount, DimRevenueShareRatio}}
	assert.Equal(t, []Dimension{DimFundingAmount, DimRevenueShareRatio}, ev.Notice().FailingDimensions)
}

func TestOpportunityView_Helpers(t *testing.T) {
	v := OpportunityView{Entries: []ViewEntry{{DealID: "b"}, {DealID: "a"}}}
	assert.Equal(t, []string{"b", "a"}, v.DealIDs())
	assert.True(t, v.Contains("a"))
	assert.False(t, v.Contains("c"))
}
