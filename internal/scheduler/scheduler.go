// Package scheduler runs periodic maintenance: the full view sweep, outbox
// pruning and database upkeep.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned by RunNow for names that were never scheduled.
var ErrUnknownJob = errors.New("unknown job")

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus reports the schedule and most recent run of one job.
type JobStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Next         time.Time     `json:"next_run,omitempty"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns"`
	LastError    string        `json:"last_error,omitempty"`
	Runs         int64         `json:"runs"`
	Running      bool          `json:"running"`
}

type entry struct {
	job      Job
	schedule string
	id       cron.EntryID

	mu     sync.Mutex // serializes runs of this job
	state  sync.Mutex // guards the fields below
	status JobStatus
}

// Scheduler manages background jobs. A job never overlaps with itself:
// a tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a new scheduler. Schedules use the six-field cron format with seconds.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]*entry),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.Len()).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job under a cron schedule, e.g. "0 */15 * * * *" or "@every 1h".
// Job names must be unique.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}

	e := &entry{job: job, schedule: schedule, status: JobStatus{Name: name, Schedule: schedule}}
	id, err := s.cron.AddFunc(schedule, func() {
		if !e.mu.TryLock() {
			s.log.Warn().Str("job", name).Msg("Previous run still in progress, skipping tick")
			return
		}
		defer e.mu.Unlock()
		_ = s.run(e)
	})
	if err != nil {
		return err
	}
	e.id = id
	s.entries[name] = e

	s.log.Info().
		Str("schedule", schedule).
		Str("job", name).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately, waiting for any scheduled
// run of the same job to finish first.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.log.Info().Str("job", name).Msg("Running job immediately")
	return s.run(e)
}

func (s *Scheduler) run(e *entry) error {
	e.state.Lock()
	e.status.Running = true
	e.state.Unlock()

	start := time.Now()
	err := e.job.Run()
	duration := time.Since(start)

	e.state.Lock()
	e.status.Running = false
	e.status.Runs++
	e.status.LastRun = start
	e.status.LastDuration = duration
	e.status.LastError = ""
	if err != nil {
		e.status.LastError = err.Error()
	}
	e.state.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", e.job.Name()).Dur("duration_ms", duration).Msg("Job failed")
	} else {
		s.log.Debug().Str("job", e.job.Name()).Dur("duration_ms", duration).Msg("Job completed")
	}
	return err
}

// Statuses returns every job's status ordered by name.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		e.state.Lock()
		st := e.status
		e.state.Unlock()
		st.Next = s.cron.Entry(e.id).Next
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
