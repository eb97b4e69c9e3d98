package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/dealflow/internal/database"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	mu   sync.Mutex
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("0 */15 * * * *", &countingJob{name: "sweep"}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "prune"}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{name: "broken"}))
	assert.Error(t, s.AddJob("@every 2h", &countingJob{name: "sweep"}), "names are unique")
	assert.Equal(t, 2, s.Len())

	s.Start()
	s.Stop()
}

func TestScheduler_RunNowRecordsStatus(t *testing.T) {
	s := New(zerolog.Nop())
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("disk full")}
	require.NoError(t, s.AddJob("@every 1h", ok))
	require.NoError(t, s.AddJob("@every 1h", failing))

	require.NoError(t, s.RunNow("ok"))
	require.NoError(t, s.RunNow("ok"))
	assert.EqualError(t, s.RunNow("failing"), "disk full")
	assert.ErrorIs(t, s.RunNow("missing"), ErrUnknownJob)
	assert.Equal(t, 2, ok.runs)

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "failing", statuses[0].Name)
	assert.Equal(t, int64(1), statuses[0].Runs)
	assert.Equal(t, "disk full", statuses[0].LastError)
	assert.Equal(t, "ok", statuses[1].Name)
	assert.Equal(t, int64(2), statuses[1].Runs)
	assert.Empty(t, statuses[1].LastError)
	assert.False(t, statuses[1].LastRun.IsZero())
	assert.Equal(t, "@every 1h", statuses[1].Schedule)
}

type recordingSubmitter struct {
	typeIDs []string
	err     error
}

func (r *recordingSubmitter) Submit(typeID, _ string, _ any) error {
	r.typeIDs = append(r.typeIDs, typeID)
	return r.err
}

func TestSweepJob_Run(t *testing.T) {
	sub := &recordingSubmitter{}
	job := NewSweepJob(sub, "opportunities:sweep")

	require.NoError(t, job.Run())
	assert.Equal(t, []string{"opportunities:sweep"}, sub.typeIDs)

	sub.err = errors.New("processor stopped")
	assert.Error(t, job.Run())
}

type fakePruner struct {
	cutoff time.Time
}

func (f *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func TestPruneOutboxJob_Run(t *testing.T) {
	pruner := &fakePruner{}
	job := NewPruneOutboxJob(pruner, 24*time.Hour)
	job.now = func() time.Time { return testingpkg.FixtureEpoch }

	require.NoError(t, job.Run())
	assert.Equal(t, testingpkg.FixtureEpoch.Add(-24*time.Hour), pruner.cutoff)
	assert.Equal(t, "prune_resubmission_outbox", job.Name())
}

func TestCheckCoreDatabasesJob_Run(t *testing.T) {
	job := NewCheckCoreDatabasesJob(map[string]*database.DB{
		"catalog": testingpkg.NewTestDB(t, "catalog"),
		"views":   testingpkg.NewTestDB(t, "views"),
		"missing": nil,
	})
	job.SetLogger(zerolog.Nop())

	assert.NoError(t, job.Run())
	assert.Equal(t, "check_core_databases", job.Name())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	job := NewCheckWALCheckpointsJob(map[string]*database.DB{
		"ledger":  testingpkg.NewTestDB(t, "ledger"),
		"missing": nil,
	})
	job.SetLogger(zerolog.Nop())

	assert.NoError(t, job.Run())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_NoDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil)
	assert.NoError(t, job.Run())
}
