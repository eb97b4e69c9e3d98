package domain

import "time"

// RuleKind says which stage a rule belongs to.
type RuleKind string

const (
	KindAssessment RuleKind = "assessment"
	KindRisk       RuleKind = "risk"
)

// Operator is the closed set of comparisons a rule can apply.
type Operator string

const (
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpInRange        Operator = "in_range"
	OpBlacklist      Operator = "blacklist"
)

// Known reports whether op is a supported operator.
func (op Operator) Known() bool {
	switch op {
	case OpGreaterOrEqual, OpLessOrEqual, OpEqual, OpInRange, OpBlacklist:
		return true
	}
	return false
}

// Threshold is the operand of a rule. Which fields are meaningful depends on the
// operator: Number or Text for comparisons, Min/Max for in_range, Set for blacklist.
type Threshold struct {
	Number *float64 `json:"number,omitempty" yaml:"number,omitempty" msgpack:"number,omitempty"`
	Text   *string  `json:"text,omitempty" yaml:"text,omitempty" msgpack:"text,omitempty"`
	Min    *float64 `json:"min,omitempty" yaml:"min,omitempty" msgpack:"min,omitempty"`
	Max    *float64 `json:"max,omitempty" yaml:"max,omitempty" msgpack:"max,omitempty"`
	Set    []string `json:"set,omitempty" yaml:"set,omitempty" msgpack:"set,omitempty"`
}

// FilterRule is one investor-owned predicate over a single dimension.
// Weight only applies to assessment rules.
type FilterRule struct {
	Dimension Dimension `json:"dimension" yaml:"dimension" msgpack:"dimension"`
	Operator  Operator  `json:"operator" yaml:"operator" msgpack:"operator"`
	Threshold Threshold `json:"threshold" yaml:"threshold" msgpack:"threshold"`
	Weight    float64   `json:"weight,omitempty" yaml:"weight,omitempty" msgpack:"weight,omitempty"`
}

// InvestorFilterSet is the full configuration for one investor. Version increases
// on every accepted replace.
type InvestorFilterSet struct {
	InvestorID       string       `json:"investor_id" yaml:"investor_id" msgpack:"investor_id"`
	Version          int64        `json:"version" yaml:"-" msgpack:"version"`
	AssessmentRules  []FilterRule `json:"assessment_rules" yaml:"assessment_rules" msgpack:"assessment_rules"`
	RiskRules        []FilterRule `json:"risk_rules" yaml:"risk_rules" msgpack:"risk_rules"`
	PassingThreshold *float64     `json:"passing_threshold,omitempty" yaml:"passing_threshold,omitempty" msgpack:"passing_threshold,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at" yaml:"-" msgpack:"updated_at"`
}

// IsEmpty reports whether the investor configured no rules at all.
func (s *InvestorFilterSet) IsEmpty() bool {
	return len(s.AssessmentRules) == 0 && len(s.RiskRules) == 0
}

// HasRiskRules reports whether the investor gates deals on risk rules.
func (s *InvestorFilterSet) HasRiskRules() bool {
	return len(s.RiskRules) > 0
}

// Threshold returns the passing threshold, falling back to def when unset.
func (s *InvestorFilterSet) Threshold(def float64) float64 {
	if s.PassingThreshold != nil {
		return *s.PassingThreshold
	}
	return def
}

// Dimensions returns the distinct dimensions referenced by any rule.
func (s *InvestorFilterSet) Dimensions() []Dimension {
	seen := make(map[Dimension]bool)
	var dims []Dimension
	for _, rules := range [][]FilterRule{s.AssessmentRules, s.RiskRules} {
		for _, r := range rules {
			if !seen[r.Dimension] {
				seen[r.Dimension] = true
				dims = append(dims, r.Dimension)
			}
		}
	}
	return dims
}

// References reports whether any rule reads one of dims.
func (s *InvestorFilterSet) References(dims []Dimension) bool {
	for _, have := range s.Dimensions() {
		for _, d := range dims {
			if have == d {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy, so snapshots handed out never alias stored rules.
func (s *InvestorFilterSet) Clone() *InvestorFilterSet {
	out := *s
	out.AssessmentRules = cloneRules(s.AssessmentRules)
	out.RiskRules = cloneRules(s.RiskRules)
	if s.PassingThreshold != nil {
		t := *s.PassingThreshold
		out.PassingThreshold = &t
	}
	return &out
}

func cloneRules(rules []FilterRule) []FilterRule {
	if rules == nil {
		return nil
	}
	out := make([]FilterRule, len(rules))
	for i, r := range rules {
		out[i] = r
		th := &out[i].Threshold
		th.Number = clonePtr(r.Threshold.Number)
		th.Min = clonePtr(r.Threshold.Min)
		th.Max = clonePtr(r.Threshold.Max)
		if r.Threshold.Text != nil {
			s := *r.Threshold.Text
			th.Text = &s
		}
		if r.Threshold.Set != nil {
			th.Set = append([]string(nil), r.Threshold.Set...)
		}
	}
	return out
}

func clonePtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
