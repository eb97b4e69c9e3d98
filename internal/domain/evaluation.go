package domain

import "time"

// PairState is a node of the per-(deal, investor) matching state machine.
type PairState string

const (
	StateIngested          PairState = "INGESTED"
	StateAssessed          PairState = "ASSESSED"
	StateRiskChecked       PairState = "RISK_CHECKED"
	StateVisible           PairState = "VISIBLE"
	StateNotVisible        PairState = "NOT_VISIBLE"
	StateRejected          PairState = "REJECTED"
	StateNeedsResubmission PairState = "NEEDS_RESUBMISSION"
)

// IsTerminal reports whether the state ends the pair's run.
func (s PairState) IsTerminal() bool {
	switch s {
	case StateVisible, StateNotVisible, StateRejected, StateNeedsResubmission:
		return true
	}
	return false
}

// Stage names one step recorded in the evaluation ledger.
type Stage string

const (
	StageAssessment Stage = "assessment"
	StageRisk       Stage = "risk"
	StageVisibility Stage = "visibility"
)

// Verdict is a stage outcome.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictSkipped Verdict = "skipped"
	VerdictVisible Verdict = "visible"
	VerdictHidden  Verdict = "hidden"
)

// RuleOutcome explains one rule's result. Reason is empty when the rule matched.
type RuleOutcome struct {
	Rule    FilterRule `json:"rule"`
	Matched bool       `json:"matched"`
	Reason  string     `json:"reason,omitempty"`
}

// StageResult is one stage of an EvaluationResult.
type StageResult struct {
	Stage   Stage    `json:"stage"`
	Verdict Verdict  `json:"verdict"`
	Score   *float64 `json:"score,omitempty"`
	Reasons []string `json:"reasons"`
	// FailingDimensions lists the dimensions behind Reasons, in rule order.
	FailingDimensions []Dimension `json:"failing_dimensions,omitempty"`
}

// EvaluationResult is an immutable ledger entry for one run of the state machine
// over a (deal, investor) pair. Stages always holds assessment, risk and
// visibility in that order.
type EvaluationResult struct {
	ID               string        `json:"id"`
	DealID           string        `json:"deal_id"`
	InvestorID       string        `json:"investor_id"`
	DealVersion      int64         `json:"deal_version"`
	FilterSetVersion int64         `json:"filter_set_version"`
	Terminal         PairState     `json:"terminal_state"`
	Score            *float64      `json:"score,omitempty"`
	Stages           []StageResult `json:"stages"`
	CarriedForward   bool          `json:"carried_forward"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Stage returns the named stage, or nil.
func (r *EvaluationResult) Stage(stage Stage) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			return &r.Stages[i]
		}
	}
	return nil
}

// SameOutcome reports whether two results carry identical verdicts for the same
// deal and filter-set versions. Ids, timestamps and carry-forward flags are ignored.
func (r *EvaluationResult) SameOutcome(o *EvaluationResult) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.DealVersion != o.DealVersion || r.FilterSetVersion != o.FilterSetVersion || r.Terminal != o.Terminal {
		return false
	}
	if !sameScore(r.Score, o.Score) || len(r.Stages) != len(o.Stages) {
		return false
	}
	for i := range r.Stages {
		a, b := r.Stages[i], o.Stages[i]
		if a.Stage != b.Stage || a.Verdict != b.Verdict || !sameScore(a.Score, b.Score) || len(a.Reasons) != len(b.Reasons) {
			return false
		}
		for j := range a.Reasons {
			if a.Reasons[j] != b.Reasons[j] {
				return false
			}
		}
	}
	return true
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
