package evaluation

import (
	"sort"

	"github.com/aristath/dealflow/internal/domain"
)

// RiskResult is the conjunctive verdict of a deal against one investor's risk rules.
type RiskResult struct {
	Passed   bool
	Outcomes []domain.RuleOutcome
}

// CheckRisk requires every rule to match. All rules are evaluated so the full set
// of failures can be reported back to the applicant.
func CheckRisk(attrs domain.Attributes, rules []domain.FilterRule) RiskResult {
	res := RiskResult{Passed: true, Outcomes: make([]domain.RuleOutcome, 0, len(rules))}
	for _, rule := range rules {
		outcome := Apply(rule, attrs)
		res.Outcomes = append(res.Outcomes, outcome)
		if !outcome.Matched {
			res.Passed = false
		}
	}
	return res
}

// Reasons lists every failing rule's explanation, in rule order.
func (r RiskResult) Reasons() []string {
	return reasons(r.Outcomes)
}

// FailingDimensions returns the distinct dimensions of failing rules, in rule order.
func (r RiskResult) FailingDimensions() []domain.Dimension {
	seen := make(map[domain.Dimension]bool)
	var dims []domain.Dimension
	for _, o := range r.Outcomes {
		if !o.Matched && !seen[o.Rule.Dimension] {
			seen[o.Rule.Dimension] = true
			dims = append(dims, o.Rule.Dimension)
		}
	}
	return dims
}

// SortedDimensions returns a sorted, de-duplicated copy of dims.
func SortedDimensions(dims []domain.Dimension) []domain.Dimension {
	seen := make(map[domain.Dimension]bool, len(dims))
	out := make([]domain.Dimension, 0, len(dims))
	for _, d := range dims {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func reasons(outcomes []domain.RuleOutcome) []string {
	out := make([]string, 0)
	for _, o := range outcomes {
		if !o.Matched {
			out = append(out, o.Reason)
		}
	}
	return out
}
