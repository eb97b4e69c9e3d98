// Package matching drives a (deal, investor) pair through assessment, risk and
// visibility, records the outcome in an append-only ledger, and reconciles the
// deal's global status from the outcomes of all investors.
package matching

import (
	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/evaluation"
)

const reasonRejected = "deal status is rejected"

// Evaluate runs the pair state machine:
//
//	INGESTED -> ASSESSED -> RISK_CHECKED -> VISIBLE
//
// with side exits REJECTED (deal rejected, nothing evaluated), NOT_VISIBLE
// (assessment failed) and NEEDS_RESUBMISSION (risk failed). The result carries
// one stage record per stage; stages that never ran are marked skipped.
//
// Evaluate is pure. The returned result has no ID or timestamp until recorded.
func Evaluate(deal domain.Deal, set *domain.InvestorFilterSet, defaultThreshold float64) *domain.EvaluationResult {
	result := &domain.EvaluationResult{
		DealID:           deal.ID,
		InvestorID:       set.InvestorID,
		DealVersion:      deal.Version,
		FilterSetVersion: set.Version,
		Terminal:         domain.StateIngested,
	}

	if deal.Status == domain.StatusRejected {
		result.Terminal = domain.StateRejected
		result.Stages = []domain.StageResult{
			skipped(domain.StageAssessment),
			skipped(domain.StageRisk),
			{Stage: domain.StageVisibility, Verdict: domain.VerdictHidden, Reasons: []string{reasonRejected}},
		}
		return result
	}

	assessment := evaluation.Assess(deal.Attributes, set.AssessmentRules, set.Threshold(defaultThreshold))
	result.Terminal = domain.StateAssessed
	result.Score = assessment.Score
	assessed := domain.StageResult{
		Stage:   domain.StageAssessment,
		Verdict: domain.VerdictPass,
		Score:   assessment.Score,
		Reasons: assessment.Reasons(),
	}
	if !assessment.Passed {
		assessed.Verdict = domain.VerdictFail
		result.Terminal = domain.StateNotVisible
		result.Stages = []domain.StageResult{
			assessed,
			skipped(domain.StageRisk),
			{Stage: domain.StageVisibility, Verdict: domain.VerdictHidden, Reasons: []string{}},
		}
		return result
	}

	risk := evaluation.CheckRisk(deal.Attributes, set.RiskRules)
	result.Terminal = domain.StateRiskChecked
	checked := domain.StageResult{
		Stage:   domain.StageRisk,
		Verdict: domain.VerdictPass,
		Reasons: risk.Reasons(),
	}
	if !risk.Passed {
		checked.Verdict = domain.VerdictFail
		checked.FailingDimensions = evaluation.SortedDimensions(risk.FailingDimensions())
		result.Terminal = domain.StateNeedsResubmission
		result.Stages = []domain.StageResult{
			assessed,
			checked,
			{Stage: domain.StageVisibility, Verdict: domain.VerdictHidden, Reasons: []string{}},
		}
		return result
	}

	result.Terminal = domain.StateVisible
	result.Stages = []domain.StageResult{
		assessed,
		checked,
		{Stage: domain.StageVisibility, Verdict: domain.VerdictVisible, Reasons: []string{}},
	}
	return result
}

func skipped(stage domain.Stage) domain.StageResult {
	return domain.StageResult{Stage: stage, Verdict: domain.VerdictSkipped, Reasons: []string{}}
}
