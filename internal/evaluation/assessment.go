package evaluation

import (
	"github.com/aristath/dealflow/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// AssessmentResult is the weighted score of a deal against one investor's
// assessment rules.
type AssessmentResult struct {
	// Score is nil when the investor has no assessment rules.
	Score     *float64
	Threshold float64
	Passed    bool
	Outcomes  []domain.RuleOutcome
}

// Assess scores attrs against rules: Σ(weight·matched) / Σ(weight).
// No rules is an automatic pass with an undefined score.
func Assess(attrs domain.Attributes, rules []domain.FilterRule, threshold float64) AssessmentResult {
	res := AssessmentResult{Threshold: threshold, Outcomes: make([]domain.RuleOutcome, 0, len(rules))}
	if len(rules) == 0 {
		res.Passed = true
		return res
	}

	weights := make([]float64, len(rules))
	matched := make([]float64, len(rules))
	for i, rule := range rules {
		outcome := Apply(rule, attrs)
		res.Outcomes = append(res.Outcomes, outcome)
		weights[i] = rule.Weight
		if outcome.Matched {
			matched[i] = 1
		}
	}

	total := floats.Sum(weights)
	score := 0.0
	if total > 0 {
		score = floats.Dot(weights, matched) / total
	}
	res.Score = &score
	res.Passed = score >= threshold
	return res
}

// Reasons lists the explanations of the unmatched rules, in rule order.
func (r AssessmentResult) Reasons() []string {
	return reasons(r.Outcomes)
}
