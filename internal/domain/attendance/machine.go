// Package attendance holds the per-member session state machine for one holy period.
package attendance

import (
	"time"

	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/period"
)

// State is derived from the stored lock flag and nullable timestamps.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
	Locked
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case InProgress:
		return "InProgress"
	case Completed:
		return "Completed"
	case Locked:
		return "Locked"
	}
	return "Unknown"
}

// StateOf reads a member's state. The lock flag wins over any timestamps.
func StateOf(m *member.Member) State {
	switch {
	case m.IsLocked:
		return Locked
	case m.AttendanceStartTime.Valid && m.AttendanceEndTime.Valid:
		return Completed
	case m.AttendanceStartTime.Valid:
		return InProgress
	default:
		return NotStarted
	}
}

// Outcome is what a digit event during a holy period resolves to.
type Outcome int

const (
	// PleaseUnlock: the member is already locked, nothing changes.
	PleaseUnlock Outcome = iota
	// AlreadyConfirmed: the session was completed earlier, nothing changes.
	AlreadyConfirmed
	// Acknowledge: first call of the period, start time is recorded.
	Acknowledge
	// ReplayAcknowledgement: repeat call inside the redial grace, nothing changes.
	ReplayAcknowledgement
	// Confirm: duration fulfilled, end time is recorded.
	Confirm
	// Lock: duration too short or too long, member is locked.
	Lock
)

func (o Outcome) String() string {
	switch o {
	case PleaseUnlock:
		return "please_unlock"
	case AlreadyConfirmed:
		return "already_confirmed"
	case Acknowledge:
		return "acknowledge"
	case ReplayAcknowledgement:
		return "replay_acknowledgement"
	case Confirm:
		return "confirm"
	case Lock:
		return "lock"
	}
	return "unknown"
}

// Mutates reports whether applying the outcome writes to the member store.
func (o Outcome) Mutates() bool {
	return o == Acknowledge || o == Confirm || o == Lock
}

// Rules are the tolerances applied when judging a repeat call.
type Rules struct {
	PrayerGrace  time.Duration
	ReadingGrace time.Duration
	RedialGrace  time.Duration
}

// Decision is the result of one transition.
type Decision struct {
	Outcome  Outcome
	Session  period.Session
	Elapsed  time.Duration
	Required time.Duration
	Grace    time.Duration
}

// Required returns the member's minimum duration for the session.
func Required(m *member.Member, session period.Session) time.Duration {
	if session == period.SessionPrayer {
		return time.Duration(m.MinPrayerMinutes) * time.Minute
	}
	return time.Duration(m.MinReadingMinutes) * time.Minute
}

func (r Rules) grace(session period.Session) time.Duration {
	if session == period.SessionPrayer {
		return r.PrayerGrace
	}
	return r.ReadingGrace
}

// Decide applies the transition table to a member for a call at now during session.
func (r Rules) Decide(m *member.Member, session period.Session, now time.Time) Decision {
	d := Decision{Session: session}
	switch StateOf(m) {
	case Locked:
		d.Outcome = PleaseUnlock
		return d
	case Completed:
		d.Outcome = AlreadyConfirmed
		return d
	case NotStarted:
		d.Outcome = Acknowledge
		return d
	}

	d.Elapsed = now.Sub(m.AttendanceStartTime.Time)
	if d.Elapsed < r.RedialGrace {
		d.Outcome = ReplayAcknowledgement
		return d
	}

	d.Required = Required(m, session)
	d.Grace = r.grace(session)
	if IsFulfilled(m.AttendanceStartTime.Time, now, d.Required, d.Grace) {
		d.Outcome = Confirm
	} else {
		d.Outcome = Lock
	}
	return d
}

// IsFulfilled is true when minTime <= end-start <= minTime+grace, inclusive at both ends.
func IsFulfilled(start, end time.Time, minTime, grace time.Duration) bool {
	elapsed := end.Sub(start)
	return elapsed >= minTime && elapsed <= minTime+grace
}
