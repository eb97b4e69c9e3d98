package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aristath/dealflow/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const moduleName = "matching"

// Notifier receives newly recorded NEEDS_RESUBMISSION outcomes.
type Notifier interface {
	Notify(ctx context.Context, result *domain.EvaluationResult)
}

type pairKey struct {
	dealID     string
	investorID string
}

// Ledger records evaluation results. A result is appended only when its outcome
// differs from the latest recorded result of the same pair, so recomputing an
// unchanged pair leaves the ledger untouched. The latest result of every pair
// is kept in memory. Returned results are shared and must not be modified.
type Ledger struct {
	repo     *ResultsRepository
	events   *events.Manager
	notifier Notifier

	writeMu sync.Mutex
	mu      sync.RWMutex
	latest  map[pairKey]*domain.EvaluationResult

	now func() time.Time
	log zerolog.Logger
}

// NewLedger creates a ledger over repo.
func NewLedger(repo *ResultsRepository, eventManager *events.Manager, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		events: eventManager,
		latest: make(map[pairKey]*domain.EvaluationResult),
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.With().Str("component", "ledger").Logger(),
	}
}

// SetNotifier installs the receiver of resubmission outcomes.
func (l *Ledger) SetNotifier(n Notifier) {
	l.notifier = n
}

// Load warms the in-memory index with the latest result of every pair.
func (l *Ledger) Load(ctx context.Context) error {
	results, err := l.repo.LatestAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load latest evaluations: %w", err)
	}

	l.mu.Lock()
	for _, res := range results {
		l.latest[pairKey{res.DealID, res.InvestorID}] = res
	}
	l.mu.Unlock()

	l.log.Info().Int("pairs", len(results)).Msg("Evaluation ledger loaded")
	return nil
}

// Latest returns the newest recorded result for a pair.
func (l *Ledger) Latest(dealID, investorID string) (*domain.EvaluationResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.latest[pairKey{dealID, investorID}]
	return res, ok
}

// History returns a pair's recorded results, newest first.
func (l *Ledger) History(ctx context.Context, dealID, investorID string, limit int) ([]*domain.EvaluationResult, error) {
	return l.repo.History(ctx, dealID, investorID, limit)
}

// LatestForDeal returns the newest result of every investor that evaluated the deal.
func (l *Ledger) LatestForDeal(ctx context.Context, dealID string) ([]*domain.EvaluationResult, error) {
	return l.repo.LatestForDeal(ctx, dealID)
}

// Record appends the results whose outcome changed and returns them. Newly
// recorded NEEDS_RESUBMISSION outcomes are passed to the notifier.
func (l *Ledger) Record(ctx context.Context, results ...*domain.EvaluationResult) ([]*domain.EvaluationResult, error) {
	l.writeMu.Lock()

	var fresh []*domain.EvaluationResult
	for _, res := range results {
		if prev, ok := l.Latest(res.DealID, res.InvestorID); ok && prev.SameOutcome(res) {
			continue
		}
		stamped := *res
		stamped.ID = uuid.New().String()
		stamped.CreatedAt = l.now()
		fresh = append(fresh, &stamped)
	}

	if err := l.appendLocked(ctx, fresh); err != nil {
		l.writeMu.Unlock()
		return nil, err
	}
	l.writeMu.Unlock()

	for _, res := range fresh {
		l.announce(ctx, res)
	}
	return fresh, nil
}

// CarryForward re-tags the pair's latest result with a new deal version without
// evaluating. It only applies when the latest result was computed against the
// same filter-set version and the immediately preceding deal version. A carried
// NEEDS_RESUBMISSION outcome is passed to the notifier like a fresh one.
func (l *Ledger) CarryForward(ctx context.Context, dealID, investorID string, filterSetVersion, dealVersion int64) (*domain.EvaluationResult, bool, error) {
	l.writeMu.Lock()

	prev, ok := l.Latest(dealID, investorID)
	if !ok || prev.FilterSetVersion != filterSetVersion || prev.DealVersion != dealVersion-1 {
		l.writeMu.Unlock()
		return nil, false, nil
	}

	carried := *prev
	carried.ID = uuid.New().String()
	carried.DealVersion = dealVersion
	carried.CarriedForward = true
	carried.CreatedAt = l.now()

	if err := l.appendLocked(ctx, []*domain.EvaluationResult{&carried}); err != nil {
		l.writeMu.Unlock()
		return nil, false, err
	}
	l.writeMu.Unlock()

	l.announce(ctx, &carried)
	return &carried, true, nil
}

func (l *Ledger) appendLocked(ctx context.Context, results []*domain.EvaluationResult) error {
	if len(results) == 0 {
		return nil
	}
	if err := l.repo.Append(ctx, results...); err != nil {
		return fmt.Errorf("failed to record evaluations: %w", err)
	}

	l.mu.Lock()
	for _, res := range results {
		l.latest[pairKey{res.DealID, res.InvestorID}] = res
	}
	l.mu.Unlock()
	return nil
}

func (l *Ledger) announce(ctx context.Context, res *domain.EvaluationResult) {
	l.log.Debug().
		Str("deal_id", res.DealID).
		Str("investor_id", res.InvestorID).
		Str("terminal", string(res.Terminal)).
		Bool("carried_forward", res.CarriedForward).
		Msg("Evaluation recorded")

	if l.events != nil {
		l.events.EmitTyped(moduleName, &events.EvaluationRecordedData{
			DealID:           res.DealID,
			InvestorID:       res.InvestorID,
			DealVersion:      res.DealVersion,
			FilterSetVersion: res.FilterSetVersion,
			Terminal:         res.Terminal,
		})
	}

	// A carried result always belongs to a newer deal version, so the applicant
	// hears that the revision still falls short.
	if res.Terminal == domain.StateNeedsResubmission && l.notifier != nil {
		l.notifier.Notify(ctx, res)
	}
}
