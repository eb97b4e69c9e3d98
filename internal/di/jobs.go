// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/scheduler"
	"github.com/rs/zerolog"
)

// Maintenance schedules (six-field cron, with seconds).
const (
	pruneOutboxSchedule    = "0 0 3 * * *"
	walCheckpointSchedule  = "0 0 * * * *"
	checkDatabasesSchedule = "0 30 4 * * *"
)

// JobInstances holds the scheduled jobs for manual triggering via API
type JobInstances struct {
	Sweep          *scheduler.SweepJob
	PruneOutbox    *scheduler.PruneOutboxJob
	CheckDatabases *scheduler.CheckCoreDatabasesJob
	WALCheckpoints *scheduler.CheckWALCheckpointsJob
}

// All returns the jobs by name.
func (j *JobInstances) All() map[string]scheduler.Job {
	return map[string]scheduler.Job{
		j.Sweep.Name():          j.Sweep,
		j.PruneOutbox.Name():    j.PruneOutbox,
		j.CheckDatabases.Name(): j.CheckDatabases,
		j.WALCheckpoints.Name(): j.WALCheckpoints,
	}
}

// RegisterJobs creates the periodic jobs and registers them with a new scheduler.
// The scheduler is stored on the container and left stopped.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Work == nil {
		return nil, fmt.Errorf("container must be wired before registering jobs")
	}

	sched := scheduler.New(log)
	databases := container.Databases()

	instances := &JobInstances{
		Sweep:          scheduler.NewSweepJob(container.Work.Processor, WorkSweep),
		PruneOutbox:    scheduler.NewPruneOutboxJob(container.Outbox, cfg.OutboxRetention),
		CheckDatabases: scheduler.NewCheckCoreDatabasesJob(databases),
		WALCheckpoints: scheduler.NewCheckWALCheckpointsJob(databases),
	}
	instances.Sweep.SetLogger(log)
	instances.PruneOutbox.SetLogger(log)
	instances.CheckDatabases.SetLogger(log)
	instances.WALCheckpoints.SetLogger(log)

	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.SweepSchedule, instances.Sweep},
		{pruneOutboxSchedule, instances.PruneOutbox},
		{walCheckpointSchedule, instances.WALCheckpoints},
		{checkDatabasesSchedule, instances.CheckDatabases},
	}
	for _, s := range schedules {
		if err := sched.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", s.job.Name(), err)
		}
	}

	container.Scheduler = sched
	return instances, nil
}
