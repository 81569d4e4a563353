package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/period"
	"prayer_attendance/internal/domain/unlock"
	"prayer_attendance/internal/domain/verse"

	"github.com/sirupsen/logrus"
)

// DefaultBulkLockChunkSize keeps each lock statement under the host's bound-parameter limit.
const DefaultBulkLockChunkSize = 95

var verseSizes = []member.VerseSize{member.VerseSmall, member.VerseMedium, member.VerseLarge}

// JobService implements the scheduled workflows.
type JobService struct {
	members    member.Repository
	queue      unlock.Queue
	verses     verse.Repository
	classifier *period.Classifier
	messages   *Messages
	dispatcher *Dispatcher
	alerter    Alerter
	chunkSize  int
	now        func() time.Time
	logger     *logrus.Entry
}

func NewJobService(
	members member.Repository,
	queue unlock.Queue,
	verses verse.Repository,
	classifier *period.Classifier,
	messages *Messages,
	dispatcher *Dispatcher,
	alerter Alerter,
	chunkSize int,
	now func() time.Time,
	logger *logrus.Entry,
) *JobService {
	if chunkSize <= 0 {
		chunkSize = DefaultBulkLockChunkSize
	}
	if now == nil {
		now = time.Now
	}
	return &JobService{
		members:    members,
		queue:      queue,
		verses:     verses,
		classifier: classifier,
		messages:   messages,
		dispatcher: dispatcher,
		alerter:    alerter,
		chunkSize:  chunkSize,
		now:        now,
		logger:     logger,
	}
}

// LockAbsentees locks every unlocked member who did not complete the session, wipes all
// attendance timestamps and notifies the members that were locked.
func (s *JobService) LockAbsentees(ctx context.Context) error {
	absentees, err := s.members.ListAbsentees(ctx)
	if err != nil {
		return fmt.Errorf("failed to list absentees: %w", err)
	}
	s.logger.WithField("absentees", len(absentees)).Info("Locking absentees")

	ids := make([]int64, len(absentees))
	for i, m := range absentees {
		ids[i] = m.ID
	}
	locked := s.lockInChunks(ctx, ids)

	wiped, wipeErr := s.members.WipeAttendanceTimes(ctx)
	if wipeErr != nil {
		s.logger.WithError(wipeErr).Error("Failed to reset attendance times")
	} else {
		s.logger.WithField("rows", wiped).Info("Attendance times reset")
	}

	var recipients []Recipient
	for _, m := range absentees {
		if locked[m.ID] {
			recipients = append(recipients, recipientOf(m))
		}
	}
	if len(recipients) > 0 {
		s.dispatcher.Dispatch(ctx, Batch{Name: "lock", Template: s.messages.LockTemplate(), Recipients: recipients})
	}

	if wipeErr != nil {
		return fmt.Errorf("failed to reset attendance times: %w", wipeErr)
	}
	return nil
}

// lockInChunks returns the set of ids that were actually locked. A failed chunk does not
// stop the others.
func (s *JobService) lockInChunks(ctx context.Context, ids []int64) map[int64]bool {
	locked := make(map[int64]bool, len(ids))
	for start := 0; start < len(ids); start += s.chunkSize {
		chunk := ids[start:min(start+s.chunkSize, len(ids))]
		changed, err := s.members.BulkLock(ctx, chunk)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"chunk_start": start,
				"chunk_size":  len(chunk),
				"member_ids":  chunk,
			}).Error("Failed to lock absentee chunk")
			s.alerter.Alert(ctx, fmt.Sprintf("Locking %d absentees failed (chunk starting at %d): %v", len(chunk), start, err))
			continue
		}
		for _, id := range changed {
			locked[id] = true
		}
	}
	return locked
}

// DrainUnlockQueue unlocks every queued member and sends them the unlock message.
func (s *JobService) DrainUnlockQueue(ctx context.Context) error {
	unlocked, err := s.queue.Drain(ctx)
	if err != nil {
		return fmt.Errorf("failed to drain unlock queue: %w", err)
	}
	if len(unlocked) == 0 {
		s.logger.Debug("Unlock queue is empty")
		return nil
	}
	s.logger.WithField("members", len(unlocked)).Info("Members unlocked from queue")
	s.dispatcher.Dispatch(ctx, Batch{Name: "unlock", Template: s.messages.UnlockTemplate(), Recipients: recipientsOf(unlocked)})
	return nil
}

// SendDailyVerses sends today's verse to every member with a preference, one batch per size.
func (s *JobService) SendDailyVerses(ctx context.Context) error {
	date := s.classifier.CivilDate(s.now())
	log := s.logger.WithField("date", date)

	entry, err := s.verses.GetByDate(ctx, date)
	if errors.Is(err, verse.ErrVerseNotFound) {
		log.Info("No verses scheduled for today")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load verses for %s: %w", date, err)
	}

	members, err := s.members.ListWithVersePreference(ctx)
	if err != nil {
		return fmt.Errorf("failed to list verse subscribers: %w", err)
	}
	partitions := make(map[member.VerseSize][]Recipient)
	for _, m := range members {
		partitions[m.DailyVerse] = append(partitions[m.DailyVerse], recipientOf(m))
	}

	var batches []Batch
	for _, size := range verseSizes {
		recipients := partitions[size]
		text := entry.Text(size)
		if len(recipients) == 0 || text == "" {
			continue
		}
		tmpl, err := s.messages.VerseTemplate(size, text, date)
		if err != nil {
			log.WithError(err).WithField("size", size).Error("Failed to render daily verse")
			continue
		}
		batches = append(batches, Batch{Name: "verse_" + string(size), Template: tmpl, Recipients: recipients})
	}
	if len(batches) == 0 {
		log.Info("No daily verse recipients")
		return nil
	}
	s.dispatcher.Dispatch(ctx, batches...)
	return nil
}

// SendBirthdayWishes greets every member whose birthday is today in the civil zone.
func (s *JobService) SendBirthdayWishes(ctx context.Context) error {
	monthDay := s.classifier.MonthDay(s.now())
	members, err := s.members.ListWithBirthday(ctx, monthDay)
	if err != nil {
		return fmt.Errorf("failed to list birthdays for %s: %w", monthDay, err)
	}
	if len(members) == 0 {
		s.logger.WithField("month_day", monthDay).Info("No birthdays today")
		return nil
	}
	s.dispatcher.Dispatch(ctx, Batch{Name: "birthday", Template: s.messages.BirthdayTemplate(), Recipients: recipientsOf(members)})
	return nil
}
