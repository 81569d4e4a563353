package app

import (
	"context"
	"testing"

	"prayer_attendance/internal/infra/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWorkflows struct {
	ran []string
	err error
}

func (w *recordingWorkflows) DrainUnlockQueue(context.Context) error {
	w.ran = append(w.ran, "drain")
	return w.err
}

func (w *recordingWorkflows) SendDailyVerses(context.Context) error {
	w.ran = append(w.ran, "verses")
	return w.err
}

func (w *recordingWorkflows) SendBirthdayWishes(context.Context) error {
	w.ran = append(w.ran, "wishes")
	return w.err
}

func (w *recordingWorkflows) LockAbsentees(context.Context) error {
	w.ran = append(w.ran, "sweep")
	return w.err
}

func TestOrchestrator_RunsEachJob(t *testing.T) {
	w := &recordingWorkflows{}
	o := NewOrchestrator(w, testLogger(), metrics.New())

	for _, job := range AllJobs {
		require.NoError(t, o.Run(context.Background(), job))
	}
	assert.Equal(t, []string{"drain", "verses", "wishes", "sweep"}, w.ran)
}

func TestOrchestrator_UnknownJob(t *testing.T) {
	w := &recordingWorkflows{}
	o := NewOrchestrator(w, testLogger(), nil)

	err := o.Run(context.Background(), JobID("reboot"))

	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.Empty(t, w.ran)
}

func TestOrchestrator_PropagatesWorkflowError(t *testing.T) {
	w := &recordingWorkflows{err: errGateway}
	o := NewOrchestrator(w, testLogger(), nil)

	assert.ErrorIs(t, o.Run(context.Background(), JobLockAbsentees), errGateway)
}

func TestParseJobID(t *testing.T) {
	job, err := ParseJobID("daily-verses")
	require.NoError(t, err)
	assert.Equal(t, JobDailyVerses, job)

	_, err = ParseJobID("nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}
