package scheduler

import (
	"github.com/rs/zerolog"
)

// Submitter queues background work.
type Submitter interface {
	Submit(typeID, subject string, payload any) error
}

// SweepJob queues a full recompute of every investor's view. The sweep repairs
// views whose incremental updates were lost, e.g. across a restart.
type SweepJob struct {
	log       zerolog.Logger
	submitter Submitter
	workType  string
}

// NewSweepJob creates a sweep job submitting workType.
func NewSweepJob(submitter Submitter, workType string) *SweepJob {
	return &SweepJob{
		log:       zerolog.Nop(),
		submitter: submitter,
		workType:  workType,
	}
}

// SetLogger sets the logger for the job
func (j *SweepJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *SweepJob) Name() string {
	return "opportunity_sweep"
}

// Run queues the sweep
func (j *SweepJob) Run() error {
	if err := j.submitter.Submit(j.workType, "", nil); err != nil {
		return err
	}
	j.log.Debug().Str("work_type", j.workType).Msg("Sweep queued")
	return nil
}
