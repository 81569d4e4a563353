package member

import (
	"database/sql"
	"time"
)

// Member represents a registered prayer-cell member.
type Member struct {
	ID                  int64
	Name                string
	Phone               string // canonical international form, e.g. +919876543210
	Stream              Stream
	DateOfBirth         sql.NullTime
	DateOfMarriage      sql.NullTime
	Address             sql.NullString
	MinPrayerMinutes    int
	MinReadingMinutes   int
	IsLocked            bool
	DailyVerse          VerseSize // empty when the member has no preference
	AttendanceStartTime sql.NullTime
	AttendanceEndTime   sql.NullTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const (
	DefaultMinPrayerMinutes  = 15
	DefaultMinReadingMinutes = 20
)

// VerseSize is the member's daily verse preference.
type VerseSize string

const (
	VerseSmall  VerseSize = "SMALL"
	VerseMedium VerseSize = "MEDIUM"
	VerseLarge  VerseSize = "LARGE"
)

func (v VerseSize) Valid() bool {
	switch v {
	case VerseSmall, VerseMedium, VerseLarge:
		return true
	}
	return false
}

// SubAdminAssignments maps each call-flow-eligible stream to the member approving its unlocks.
// A missing key means nobody is assigned.
type SubAdminAssignments map[Stream]int64
