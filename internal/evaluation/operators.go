// Package evaluation holds the pure rule evaluators: a single dispatch over the
// operator set, weighted assessment scoring and conjunctive risk checks.
//
// Nothing here touches shared state, so any number of (deal, investor) pairs can
// be evaluated concurrently.
package evaluation

import (
	"fmt"
	"strings"

	"github.com/aristath/dealflow/internal/domain"
)

// Apply evaluates one rule against a deal's attributes.
// A missing value or an operand that does not fit the operator never panics or
// errors: the rule is reported as not matched with a reason.
func Apply(rule domain.FilterRule, attrs domain.Attributes) domain.RuleOutcome {
	value, ok := attrs.Value(rule.Dimension)
	if !ok {
		return fail(rule, fmt.Sprintf("%s: missing", rule.Dimension))
	}

	th := rule.Threshold
	switch rule.Operator {
	case domain.OpGreaterOrEqual:
		if value.IsText || th.Number == nil {
			return unsupported(rule)
		}
		if value.Number >= *th.Number {
			return match(rule)
		}
		return fail(rule, fmt.Sprintf("%s: %s < %s", rule.Dimension, value, domain.FormatNumber(*th.Number)))

	case domain.OpLessOrEqual:
		if value.IsText || th.Number == nil {
			return unsupported(rule)
		}
		if value.Number <= *th.Number {
			return match(rule)
		}
		return fail(rule, fmt.Sprintf("%s: %s > %s", rule.Dimension, value, domain.FormatNumber(*th.Number)))

	case domain.OpEqual:
		switch {
		case value.IsText && th.Text != nil:
			if strings.EqualFold(value.Text, *th.Text) {
				return match(rule)
			}
			return fail(rule, fmt.Sprintf("%s: %s != %s", rule.Dimension, value, *th.Text))
		case !value.IsText && th.Number != nil:
			if value.Number == *th.Number {
				return match(rule)
			}
			return fail(rule, fmt.Sprintf("%s: %s != %s", rule.Dimension, value, domain.FormatNumber(*th.Number)))
		}
		return unsupported(rule)

	case domain.OpInRange:
		lo, hi, ok := th.Bounds()
		if value.IsText || !ok {
			return unsupported(rule)
		}
		if value.Number >= lo && value.Number <= hi {
			return match(rule)
		}
		return fail(rule, fmt.Sprintf("%s: %s outside [%s, %s]", rule.Dimension, value,
			domain.FormatNumber(lo), domain.FormatNumber(hi)))

	case domain.OpBlacklist:
		if len(th.Set) == 0 {
			return unsupported(rule)
		}
		candidate := value.String()
		for _, banned := range th.Set {
			if strings.EqualFold(strings.TrimSpace(banned), candidate) {
				return fail(rule, fmt.Sprintf("%s: %s is blacklisted", rule.Dimension, value))
			}
		}
		return match(rule)
	}

	return unsupported(rule)
}

func match(rule domain.FilterRule) domain.RuleOutcome {
	return domain.RuleOutcome{Rule: rule, Matched: true}
}

func fail(rule domain.FilterRule, reason string) domain.RuleOutcome {
	return domain.RuleOutcome{Rule: rule, Reason: reason}
}

// unsupported covers rules that slipped past validation (e.g. loaded from an old
// snapshot). They count as failures.
func unsupported(rule domain.FilterRule) domain.RuleOutcome {
	return fail(rule, fmt.Sprintf("%s: unsupported %s operand", rule.Dimension, rule.Operator))
}
