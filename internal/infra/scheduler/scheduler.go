package scheduler

import (
	"context"
	"fmt"
	"time"

	"prayer_attendance/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// JobRunner is implemented by the orchestrator.
type JobRunner interface {
	Run(ctx context.Context, job app.JobID) error
}

// Entry binds a cron expression to a job.
type Entry struct {
	Spec string
	Job  app.JobID
}

// Specs are the configured trigger times.
type Specs struct {
	DrainQueue string
	Verses     string
	Birthdays  string
	Sweeps     []string
}

// Entries expands the trigger configuration. Every sweep time gets its own entry.
func (s Specs) Entries() []Entry {
	entries := []Entry{
		{Spec: s.DrainQueue, Job: app.JobDrainUnlockQueue},
		{Spec: s.Verses, Job: app.JobDailyVerses},
		{Spec: s.Birthdays, Job: app.JobBirthdayWishes},
	}
	for _, spec := range s.Sweeps {
		entries = append(entries, Entry{Spec: spec, Job: app.JobLockAbsentees})
	}
	return entries
}

type JobScheduler struct {
	cronEngine *cron.Cron
	runner     JobRunner
	timeout    time.Duration
	logger     *logrus.Entry
}

// NewJobScheduler evaluates every spec in loc. Overlapping runs of the same entry are skipped.
func NewJobScheduler(runner JobRunner, loc *time.Location, timeout time.Duration, logger *logrus.Entry) *JobScheduler {
	cl := cronLogger{logger: logger}
	return &JobScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds all entries; an invalid spec is a startup error.
func (s *JobScheduler) Register(entries []Entry) error {
	for _, e := range entries {
		job := e.Job
		if _, err := s.cronEngine.AddFunc(e.Spec, func() { s.trigger(job) }); err != nil {
			return fmt.Errorf("invalid cron spec %q for %s: %w", e.Spec, job, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job, "spec": e.Spec}).Info("Job scheduled")
	}
	return nil
}

func (s *JobScheduler) trigger(job app.JobID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	// the orchestrator logs the failure with its run id
	_ = s.runner.Run(ctx, job)
}

func (s *JobScheduler) Start() {
	s.cronEngine.Start()
	s.logger.WithField("entries", len(s.cronEngine.Entries())).Info("Job scheduler started")
}

// Stop waits for running jobs to finish.
func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped")
}

// cronLogger routes robfig/cron's own logging into logrus.
type cronLogger struct {
	logger *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
