package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prayer_attendance/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobID names a scheduled workflow.
type JobID string

const (
	JobDrainUnlockQueue JobID = "drain-unlock-queue"
	JobDailyVerses      JobID = "daily-verses"
	JobBirthdayWishes   JobID = "birthday-wishes"
	JobLockAbsentees    JobID = "lock-absentees"
)

var AllJobs = []JobID{JobDrainUnlockQueue, JobDailyVerses, JobBirthdayWishes, JobLockAbsentees}

var ErrUnknownJob = errors.New("unknown job")

func ParseJobID(s string) (JobID, error) {
	for _, j := range AllJobs {
		if string(j) == s {
			return j, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJob, s)
}

// Workflows is the set of jobs the orchestrator can run.
type Workflows interface {
	DrainUnlockQueue(ctx context.Context) error
	SendDailyVerses(ctx context.Context) error
	SendBirthdayWishes(ctx context.Context) error
	LockAbsentees(ctx context.Context) error
}

// Orchestrator maps job ids to workflows. It is driven by the scheduler and the manual
// admin trigger.
type Orchestrator struct {
	workflows Workflows
	logger    *logrus.Entry
	metrics   *metrics.Metrics
}

func NewOrchestrator(w Workflows, logger *logrus.Entry, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{workflows: w, logger: logger, metrics: m}
}

func (o *Orchestrator) Run(ctx context.Context, job JobID) error {
	var run func(context.Context) error
	switch job {
	case JobDrainUnlockQueue:
		run = o.workflows.DrainUnlockQueue
	case JobDailyVerses:
		run = o.workflows.SendDailyVerses
	case JobBirthdayWishes:
		run = o.workflows.SendBirthdayWishes
	case JobLockAbsentees:
		run = o.workflows.LockAbsentees
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}

	log := o.logger.WithFields(logrus.Fields{"job": job, "run_id": uuid.NewString()})
	log.Info("Job started")
	started := time.Now()
	err := run(ctx)
	took := time.Since(started)
	o.metrics.ObserveJob(string(job), took, err)
	if err != nil {
		log.WithError(err).WithField("took", took.String()).Error("Job failed")
		return err
	}
	log.WithField("took", took.String()).Info("Job finished")
	return nil
}
