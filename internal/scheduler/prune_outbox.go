package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Pruner deletes stored notices older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneOutboxJob removes resubmission notices past their retention.
type PruneOutboxJob struct {
	log       zerolog.Logger
	pruner    Pruner
	retention time.Duration
	now       func() time.Time
}

// NewPruneOutboxJob creates a prune job keeping retention worth of notices.
func NewPruneOutboxJob(pruner Pruner, retention time.Duration) *PruneOutboxJob {
	return &PruneOutboxJob{
		log:       zerolog.Nop(),
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
	}
}

// SetLogger sets the logger for the job
func (j *PruneOutboxJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *PruneOutboxJob) Name() string {
	return "prune_resubmission_outbox"
}

// Run deletes expired notices
func (j *PruneOutboxJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	removed, err := j.pruner.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune outbox: %w", err)
	}

	j.log.Info().
		Int64("removed", removed).
		Time("cutoff", cutoff).
		Msg("Outbox pruned")
	return nil
}
