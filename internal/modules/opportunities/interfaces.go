package opportunities

import (
	"context"

	"github.com/aristath/dealflow/internal/domain"
)

// DealSource is the read side of the deal catalog.
type DealSource interface {
	All(ctx context.Context) ([]domain.Deal, error)
	Get(ctx context.Context, id string) (*domain.Deal, error)
	Revision(ctx context.Context) (int64, error)
}

// FilterSource is the read side of the filter rule store.
type FilterSource interface {
	Snapshot(investorID string) (*domain.InvestorFilterSet, bool)
	CurrentVersion(investorID string) (int64, bool)
	Investors() []string
	// References reports whether the investor's current rules use any of dims.
	References(investorID string, dims []domain.Dimension) bool
}

// ResultLedger records the evaluation results behind a published view.
type ResultLedger interface {
	Record(ctx context.Context, results ...*domain.EvaluationResult) ([]*domain.EvaluationResult, error)
	CarryForward(ctx context.Context, dealID, investorID string, filterSetVersion, dealVersion int64) (*domain.EvaluationResult, bool, error)
}

// Archiver receives a copy of every published view.
type Archiver interface {
	Archive(ctx context.Context, view *domain.OpportunityView)
}
