package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"prayer_attendance/internal/app"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu       sync.Mutex
	jobs     []app.JobID
	deadline bool
}

func (r *recordingRunner) Run(ctx context.Context, job app.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	_, r.deadline = ctx.Deadline()
	return nil
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSpecsEntries(t *testing.T) {
	specs := Specs{DrainQueue: "*/15 * * * *", Verses: "1 0 * * *", Birthdays: "5 0 * * *", Sweeps: []string{"27 7 * * *", "2 20 * * *"}}

	entries := specs.Entries()

	require.Len(t, entries, 5)
	assert.Equal(t, app.JobDrainUnlockQueue, entries[0].Job)
	assert.Equal(t, Entry{Spec: "2 20 * * *", Job: app.JobLockAbsentees}, entries[4])
}

func TestRegister_RejectsInvalidSpec(t *testing.T) {
	s := NewJobScheduler(&recordingRunner{}, time.UTC, time.Minute, quietLogger())

	err := s.Register([]Entry{{Spec: "every tuesday", Job: app.JobDailyVerses}})

	assert.ErrorContains(t, err, "daily-verses")
}

func TestRegister_UsesConfiguredLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	s := NewJobScheduler(&recordingRunner{}, ist, time.Minute, quietLogger())
	require.NoError(t, s.Register([]Entry{{Spec: "27 7 * * *", Job: app.JobLockAbsentees}}))

	assert.Equal(t, ist, s.cronEngine.Location())
	entries := s.cronEngine.Entries()
	require.Len(t, entries, 1)
	// the engine evaluates schedules against its own clock in the configured zone
	next := entries[0].Schedule.Next(time.Date(2025, time.March, 10, 0, 0, 0, 0, ist))
	assert.Equal(t, time.Date(2025, time.March, 10, 7, 27, 0, 0, ist), next)
}

func TestTrigger_RunsJobWithTimeout(t *testing.T) {
	runner := &recordingRunner{}
	s := NewJobScheduler(runner, time.UTC, time.Minute, quietLogger())

	s.trigger(app.JobDrainUnlockQueue)

	assert.Equal(t, []app.JobID{app.JobDrainUnlockQueue}, runner.jobs)
	assert.True(t, runner.deadline)
}
