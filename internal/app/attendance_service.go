package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prayer_attendance/internal/domain/attendance"
	"prayer_attendance/internal/domain/ivr"
	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/period"
	"prayer_attendance/internal/domain/sms"
	"prayer_attendance/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

const outcomeLostRace = "lost_race"

// AttendanceSettings are the call-flow tunables taken from configuration.
type AttendanceSettings struct {
	Rules          attendance.Rules
	MonitorContact string // receives a copy of every call-flow notification; may be empty
	CountryCode    string
	Now            func() time.Time
}

// AttendanceService answers the two steps of the attendance call: the greeting and the
// stream checkpoint.
type AttendanceService struct {
	members    member.Repository
	classifier *period.Classifier
	flow       ivr.Flow
	messages   *Messages
	dispatcher *Dispatcher
	settings   AttendanceSettings
	logger     *logrus.Entry
	metrics    *metrics.Metrics
}

func NewAttendanceService(
	members member.Repository,
	classifier *period.Classifier,
	flow ivr.Flow,
	messages *Messages,
	dispatcher *Dispatcher,
	settings AttendanceSettings,
	logger *logrus.Entry,
	m *metrics.Metrics,
) *AttendanceService {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.CountryCode == "" {
		settings.CountryCode = member.DefaultCountryCode
	}
	return &AttendanceService{
		members:    members,
		classifier: classifier,
		flow:       flow,
		messages:   messages,
		dispatcher: dispatcher,
		settings:   settings,
		logger:     logger,
		metrics:    m,
	}
}

// Init greets a new call. Calls during maintenance are dropped unless a session is open.
func (s *AttendanceService) Init(ctx context.Context) ivr.Directive {
	now := s.settings.Now()
	if s.classifier.IsMaintenancePeriod(now) && !s.classifier.IsHolyPeriod(now) {
		s.logger.Info("Call received during maintenance window, hanging up")
		return s.flow.Hangup()
	}
	return s.flow.AskStream()
}

// Checkpoint resolves the stream digit of a call and applies the attendance state machine.
// Errors are only returned for store failures.
func (s *AttendanceService) Checkpoint(ctx context.Context, event ivr.DigitEvent) (ivr.Directive, error) {
	log := s.logger.WithFields(logrus.Fields{"caller_id": event.CallerID, "dtmf": event.DTMF, "call_uuid": event.UUID})

	stream, ok := member.StreamFromDigit(event.DTMF)
	if !ok || !stream.CallFlowEligible() {
		log.Info("Invalid stream choice, hanging up")
		return s.flow.Hangup(), nil
	}

	now := s.settings.Now()
	// a window starting right where another ends takes precedence over its maintenance tail
	session := s.classifier.Current(now)
	if session == period.SessionNone && s.classifier.IsMaintenancePeriod(now) {
		log.Info("Checkpoint during maintenance window, hanging up")
		return s.flow.Hangup(), nil
	}

	phone := member.CanonicalPhone(event.CallerID, s.settings.CountryCode)
	m, err := s.members.FindByPhoneAndStream(ctx, phone, stream)
	if errors.Is(err, member.ErrMemberNotFound) {
		log.WithField("stream", stream).Info("Caller is not registered for this stream")
		return s.flow.Play(ivr.AudioUnregistered), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member for caller: %w", err)
	}

	if session == period.SessionNone {
		return s.flow.AskUnlocking(string(stream)), nil
	}
	return s.apply(ctx, m, session, now, log.WithField("member_id", m.ID))
}

func (s *AttendanceService) apply(ctx context.Context, m *member.Member, session period.Session, now time.Time, log *logrus.Entry) (ivr.Directive, error) {
	d := s.settings.Rules.Decide(m, session, now)
	log = log.WithFields(logrus.Fields{
		"session": session.String(),
		"state":   attendance.StateOf(m).String(),
		"outcome": d.Outcome.String(),
	})

	var (
		applied bool
		err     error
	)
	switch d.Outcome {
	case attendance.Acknowledge:
		applied, err = s.members.MarkAttendanceStart(ctx, m.ID, now)
	case attendance.Confirm:
		applied, err = s.members.MarkAttendanceEnd(ctx, m.ID, now)
	case attendance.Lock:
		applied, err = s.members.Lock(ctx, m.ID)
	default:
		s.metrics.ObserveOutcome(d.Outcome.String())
		log.Debug("Replaying prompt without changes")
		return s.flow.Play(audioFor(d.Outcome)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s for member %d: %w", d.Outcome, m.ID, err)
	}
	if !applied {
		return s.afterLostRace(ctx, m.ID, log)
	}

	s.metrics.ObserveOutcome(d.Outcome.String())
	log.WithFields(logrus.Fields{
		"elapsed":  d.Elapsed.String(),
		"required": d.Required.String(),
	}).Info("Attendance updated")

	var (
		msg    sms.Message
		render error
	)
	switch d.Outcome {
	case attendance.Acknowledge:
		msg, render = s.messages.Acknowledgement(m, session)
	case attendance.Confirm:
		msg, render = s.messages.Confirmation(m, session)
	case attendance.Lock:
		msg, render = s.messages.Lock(m)
	}
	if render != nil {
		log.WithError(render).Error("Failed to render attendance notification")
	} else {
		s.dispatcher.SendCopies(ctx, d.Outcome.String(), msg, m.Phone, s.settings.MonitorContact)
	}
	return s.flow.Play(audioFor(d.Outcome)), nil
}

// afterLostRace answers from the state another request already wrote.
func (s *AttendanceService) afterLostRace(ctx context.Context, id int64, log *logrus.Entry) (ivr.Directive, error) {
	current, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload member %d: %w", id, err)
	}
	s.metrics.ObserveOutcome(outcomeLostRace)
	state := attendance.StateOf(current)
	log.WithField("current_state", state.String()).Info("Concurrent call already updated member")

	switch state {
	case attendance.Locked:
		return s.flow.Play(ivr.AudioPleaseUnlock), nil
	case attendance.Completed:
		return s.flow.Play(ivr.AudioConfirmation), nil
	default:
		return s.flow.Play(ivr.AudioAcknowledgement), nil
	}
}

func audioFor(o attendance.Outcome) string {
	switch o {
	case attendance.Acknowledge, attendance.ReplayAcknowledgement:
		return ivr.AudioAcknowledgement
	case attendance.Confirm, attendance.AlreadyConfirmed:
		return ivr.AudioConfirmation
	default:
		return ivr.AudioPleaseUnlock
	}
}
