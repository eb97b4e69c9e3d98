package filters

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aristath/dealflow/internal/domain"
)

// ValidationError names one malformed rule.
type ValidationError struct {
	Kind      domain.RuleKind
	Index     int
	Dimension domain.Dimension
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s rule %d (%s): %s", e.Kind, e.Index, e.Dimension, e.Reason)
}

// ValidationErrors collects every problem found in one submission.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var many ValidationErrors
	var one *ValidationError
	return errors.As(err, &many) || errors.As(err, &one)
}

// Validate checks a filter set before it can enter the pipeline. All problems
// are reported, not just the first.
func Validate(set *domain.InvestorFilterSet) error {
	var errs ValidationErrors

	if strings.TrimSpace(set.InvestorID) == "" {
		errs = append(errs, &ValidationError{Reason: "investor id is required"})
	}
	if t := set.PassingThreshold; t != nil && !(*t >= 0 && *t <= 1) {
		errs = append(errs, &ValidationError{
			Reason: fmt.Sprintf("passing threshold %s outside [0, 1]", domain.FormatNumber(*t)),
		})
	}

	for i, rule := range set.AssessmentRules {
		if reason := validateRule(domain.KindAssessment, rule); reason != "" {
			errs = append(errs, &ValidationError{Kind: domain.KindAssessment, Index: i, Dimension: rule.Dimension, Reason: reason})
		}
	}
	for i, rule := range set.RiskRules {
		if reason := validateRule(domain.KindRisk, rule); reason != "" {
			errs = append(errs, &ValidationError{Kind: domain.KindRisk, Index: i, Dimension: rule.Dimension, Reason: reason})
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateRule(kind domain.RuleKind, rule domain.FilterRule) string {
	if !rule.Dimension.Known() {
		return fmt.Sprintf("unknown dimension %q", rule.Dimension)
	}
	if !rule.Operator.Known() {
		return fmt.Sprintf("unknown operator %q", rule.Operator)
	}

	switch kind {
	case domain.KindAssessment:
		if !(rule.Weight > 0 && rule.Weight <= 1) {
			return fmt.Sprintf("weight %s outside (0, 1]", domain.FormatNumber(rule.Weight))
		}
	case domain.KindRisk:
		if rule.Weight != 0 {
			return "weight is only allowed on assessment rules"
		}
	}

	th := rule.Threshold
	if !finite(th.Number) || !finite(th.Min) || !finite(th.Max) {
		return "threshold must be a finite number"
	}
	text := rule.Dimension.IsText()
	switch rule.Operator {
	case domain.OpGreaterOrEqual, domain.OpLessOrEqual:
		if text {
			return fmt.Sprintf("operator %q requires a numeric dimension", rule.Operator)
		}
		if th.Number == nil {
			return "threshold must be a number"
		}
	case domain.OpEqual:
		if text && th.Text == nil {
			return "threshold must be text"
		}
		if !text && th.Number == nil {
			return "threshold must be a number"
		}
	case domain.OpInRange:
		if text {
			return fmt.Sprintf("operator %q requires a numeric dimension", rule.Operator)
		}
		lo, hi, ok := th.Bounds()
		if !ok {
			return "in_range requires min and max, as an object or a [min, max] list"
		}
		if !finite(&lo) || !finite(&hi) {
			return "threshold must be a finite number"
		}
		if lo > hi {
			return fmt.Sprintf("min %s greater than max %s", domain.FormatNumber(lo), domain.FormatNumber(hi))
		}
	case domain.OpBlacklist:
		if len(th.Set) == 0 {
			return "blacklist requires a non-empty set"
		}
		for _, v := range th.Set {
			if strings.TrimSpace(v) == "" {
				return "blacklist values must not be empty"
			}
			if !text {
				n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
				if err != nil || !finite(&n) {
					return fmt.Sprintf("blacklist value %q is not a number", v)
				}
			}
		}
	}
	return ""
}

func finite(f *float64) bool {
	return f == nil || !(math.IsNaN(*f) || math.IsInf(*f, 0))
}

// normalize trims text operands, stores a [min, max] in_range list as Min/Max
// and rewrites numeric blacklist members in the shortest form the evaluator
// compares against. Call only after Validate.
func normalize(set *domain.InvestorFilterSet) {
	set.InvestorID = strings.TrimSpace(set.InvestorID)
	for _, rules := range [][]domain.FilterRule{set.AssessmentRules, set.RiskRules} {
		for i := range rules {
			th := &rules[i].Threshold
			if rules[i].Operator == domain.OpInRange && th.Min == nil {
				if lo, hi, ok := th.Bounds(); ok {
					th.Min, th.Max, th.Set = domain.Float(lo), domain.Float(hi), nil
				}
			}
			if th.Text != nil {
				trimmed := strings.TrimSpace(*th.Text)
				th.Text = &trimmed
			}
			if len(th.Set) == 0 {
				continue
			}
			members := make([]string, len(th.Set))
			for j, v := range th.Set {
				v = strings.TrimSpace(v)
				if !rules[i].Dimension.IsText() {
					if n, err := strconv.ParseFloat(v, 64); err == nil {
						v = domain.FormatNumber(n)
					}
				}
				members[j] = v
			}
			th.Set = members
		}
	}
}
