package httpapi

import (
	"database/sql"
	"fmt"
	"time"

	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/verse"
)

const civilDateLayout = "2006-01-02"

// memberJSON is the member shape exchanged with the admin app.
type memberJSON struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	Stream              string     `json:"stream"`
	DateOfBirth         *string    `json:"dob"`
	DateOfMarriage      *string    `json:"dom"`
	Address             *string    `json:"address"`
	MinPrayerMinutes    int        `json:"min_prayer_time"`
	MinReadingMinutes   int        `json:"min_bible_reading_time"`
	IsLocked            bool       `json:"is_locked"`
	DailyVerse          *string    `json:"daily_verse"`
	AttendanceStartTime *time.Time `json:"attendance_start_time"`
	AttendanceEndTime   *time.Time `json:"attendance_end_time"`
}

func toMemberJSON(m *member.Member) memberJSON {
	out := memberJSON{
		ID:                m.ID,
		Name:              m.Name,
		Phone:             m.Phone,
		Stream:            string(m.Stream),
		DateOfBirth:       formatDate(m.DateOfBirth),
		DateOfMarriage:    formatDate(m.DateOfMarriage),
		MinPrayerMinutes:  m.MinPrayerMinutes,
		MinReadingMinutes: m.MinReadingMinutes,
		IsLocked:          m.IsLocked,
	}
	if m.Address.Valid {
		out.Address = &m.Address.String
	}
	if m.DailyVerse != "" {
		v := string(m.DailyVerse)
		out.DailyVerse = &v
	}
	if m.AttendanceStartTime.Valid {
		out.AttendanceStartTime = &m.AttendanceStartTime.Time
	}
	if m.AttendanceEndTime.Valid {
		out.AttendanceEndTime = &m.AttendanceEndTime.Time
	}
	return out
}

func toMembersJSON(members []*member.Member) []memberJSON {
	out := make([]memberJSON, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberJSON(m))
	}
	return out
}

// toMember converts an admin payload. Attendance times are owned by the call flow and ignored.
func (j memberJSON) toMember() (*member.Member, error) {
	dob, err := parseDate("dob", j.DateOfBirth)
	if err != nil {
		return nil, err
	}
	dom, err := parseDate("dom", j.DateOfMarriage)
	if err != nil {
		return nil, err
	}
	m := &member.Member{
		ID:                j.ID,
		Name:              j.Name,
		Phone:             j.Phone,
		Stream:            member.Stream(j.Stream),
		DateOfBirth:       dob,
		DateOfMarriage:    dom,
		MinPrayerMinutes:  j.MinPrayerMinutes,
		MinReadingMinutes: j.MinReadingMinutes,
		IsLocked:          j.IsLocked,
	}
	if j.Address != nil && *j.Address != "" {
		m.Address = sql.NullString{String: *j.Address, Valid: true}
	}
	if j.DailyVerse != nil {
		m.DailyVerse = member.VerseSize(*j.DailyVerse)
	}
	return m, nil
}

func formatDate(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.Format(civilDateLayout)
	return &s
}

func parseDate(field string, s *string) (sql.NullTime, error) {
	if s == nil || *s == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse(civilDateLayout, *s)
	if err != nil {
		return sql.NullTime{}, fmt.Errorf("%s must be a YYYY-MM-DD date", field)
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

// verseJSON is one date of the daily verse calendar. In a bulk update a missing or null
// field keeps the stored text and "" clears it.
type verseJSON struct {
	Small  *string `json:"small"`
	Medium *string `json:"medium"`
	Large  *string `json:"large"`
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func toVersesJSON(entries []*verse.Entry) map[string]verseJSON {
	out := make(map[string]verseJSON, len(entries))
	for _, e := range entries {
		out[e.Date] = verseJSON{Small: nullable(e.Small), Medium: nullable(e.Medium), Large: nullable(e.Large)}
	}
	return out
}
