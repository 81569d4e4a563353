package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"prayer_attendance/internal/domain/ivr"
	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/period"
	"prayer_attendance/internal/domain/sms"
	"prayer_attendance/internal/domain/verse"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, ist)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testClassifier(t *testing.T) *period.Classifier {
	t.Helper()
	c, err := period.New(period.Config{
		Prayer:      period.Window{Start: 4 * 60, End: 7 * 60},
		Reading:     period.Window{Start: 19 * 60, End: 20 * 60},
		Maintenance: 30,
		Location:    ist,
	})
	require.NoError(t, err)
	return c
}

func testMessages(t *testing.T) *Messages {
	t.Helper()
	catalog, err := sms.DefaultCatalog()
	require.NoError(t, err)
	return NewMessages(catalog, "+919000000000")
}

var testFlow = ivr.NewFlow("https://attendance.example.org")

func nullTime(t time.Time) sql.NullTime { return sql.NullTime{Time: t, Valid: true} }

// memMembers is an in-memory member store with the same conditional-update semantics
// as the Postgres repository.
type memMembers struct {
	mu     sync.Mutex
	byID   map[int64]*member.Member
	nextID int64

	bulkLockErr func(ids []int64) error
	bulkLocks   [][]int64
	wipes       int
}

func newMemMembers(ms ...*member.Member) *memMembers {
	s := &memMembers{byID: map[int64]*member.Member{}}
	for _, m := range ms {
		c := *m
		s.byID[m.ID] = &c
		if m.ID > s.nextID {
			s.nextID = m.ID
		}
	}
	return s
}

func (s *memMembers) get(id int64) *member.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.byID[id]
	return &c
}

func (s *memMembers) sorted() []*member.Member {
	out := make([]*member.Member, 0, len(s.byID))
	for _, m := range s.byID {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memMembers) Create(_ context.Context, m *member.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Phone == m.Phone && existing.Stream == m.Stream {
			return member.ErrDuplicatePhoneStream
		}
	}
	s.nextID++
	m.ID = s.nextID
	c := *m
	s.byID[m.ID] = &c
	return nil
}

func (s *memMembers) GetByID(_ context.Context, id int64) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	c := *m
	return &c, nil
}

func (s *memMembers) FindByPhoneAndStream(_ context.Context, phone string, stream member.Stream) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if m.Phone == phone && m.Stream == stream {
			c := *m
			return &c, nil
		}
	}
	return nil, member.ErrMemberNotFound
}

func (s *memMembers) Update(_ context.Context, m *member.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; !ok {
		return member.ErrMemberNotFound
	}
	c := *m
	s.byID[m.ID] = &c
	return nil
}

func (s *memMembers) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return member.ErrMemberNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memMembers) ListAll(context.Context) ([]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

func (s *memMembers) MarkAttendanceStart(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.byID[id]
	if m == nil || m.IsLocked || m.AttendanceStartTime.Valid {
		return false, nil
	}
	m.AttendanceStartTime = nullTime(at)
	return true, nil
}

func (s *memMembers) MarkAttendanceEnd(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.byID[id]
	if m == nil || m.IsLocked || !m.AttendanceStartTime.Valid || m.AttendanceEndTime.Valid {
		return false, nil
	}
	m.AttendanceEndTime = nullTime(at)
	return true, nil
}

func (s *memMembers) Lock(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.byID[id]
	if m == nil || m.IsLocked || m.AttendanceEndTime.Valid {
		return false, nil
	}
	m.IsLocked = true
	return true, nil
}

func (s *memMembers) ListAbsentees(context.Context) ([]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*member.Member
	for _, m := range s.sorted() {
		if !m.IsLocked && !m.AttendanceEndTime.Valid {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMembers) BulkLock(_ context.Context, ids []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkLocks = append(s.bulkLocks, append([]int64(nil), ids...))
	if s.bulkLockErr != nil {
		if err := s.bulkLockErr(ids); err != nil {
			return nil, err
		}
	}
	var changed []int64
	for _, id := range ids {
		if m := s.byID[id]; m != nil && !m.IsLocked {
			m.IsLocked = true
			changed = append(changed, id)
		}
	}
	return changed, nil
}

func (s *memMembers) WipeAttendanceTimes(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipes++
	for _, m := range s.byID {
		m.AttendanceStartTime = sql.NullTime{}
		m.AttendanceEndTime = sql.NullTime{}
	}
	return int64(len(s.byID)), nil
}

func (s *memMembers) ListWithVersePreference(context.Context) ([]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*member.Member
	for _, m := range s.sorted() {
		if m.DailyVerse != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMembers) ListWithBirthday(_ context.Context, monthDay string) ([]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*member.Member
	for _, m := range s.sorted() {
		if m.DateOfBirth.Valid && m.DateOfBirth.Time.Format("01-02") == monthDay {
			out = append(out, m)
		}
	}
	return out, nil
}

type memSubAdmins struct {
	members     *memMembers
	assignments member.SubAdminAssignments
}

func (s *memSubAdmins) GetAll(context.Context) (member.SubAdminAssignments, error) {
	out := member.SubAdminAssignments{}
	for k, v := range s.assignments {
		out[k] = v
	}
	return out, nil
}

func (s *memSubAdmins) ReplaceAll(_ context.Context, a member.SubAdminAssignments) error {
	s.assignments = a
	return nil
}

func (s *memSubAdmins) PhoneForStream(ctx context.Context, stream member.Stream) (string, error) {
	id, ok := s.assignments[stream]
	if !ok {
		return "", member.ErrNoSubAdmin
	}
	m, err := s.members.GetByID(ctx, id)
	if err != nil {
		return "", member.ErrNoSubAdmin
	}
	return m.Phone, nil
}

func (s *memSubAdmins) IsSubAdmin(_ context.Context, memberID int64) (bool, error) {
	for _, id := range s.assignments {
		if id == memberID {
			return true, nil
		}
	}
	return false, nil
}

// memQueue keeps queued ids next to the member store so Drain can unlock atomically.
type memQueue struct {
	members *memMembers
	mu      sync.Mutex
	ids     []int64
}

func (q *memQueue) Enqueue(ctx context.Context, id int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, err := q.members.GetByID(ctx, id)
	if err != nil || !m.IsLocked {
		return false, nil
	}
	for _, queued := range q.ids {
		if queued == id {
			return false, nil
		}
	}
	q.ids = append(q.ids, id)
	return true, nil
}

func (q *memQueue) Drain(context.Context) ([]*member.Member, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.members.mu.Lock()
	defer q.members.mu.Unlock()
	var out []*member.Member
	for _, id := range q.ids {
		if m := q.members.byID[id]; m != nil {
			m.IsLocked = false
			c := *m
			out = append(out, &c)
		}
	}
	q.ids = nil
	return out, nil
}

type memVerses struct {
	entries map[string]*verse.Entry
}

func (v *memVerses) GetByDate(_ context.Context, date string) (*verse.Entry, error) {
	e, ok := v.entries[date]
	if !ok {
		return nil, verse.ErrVerseNotFound
	}
	return e, nil
}

func (v *memVerses) ListRange(_ context.Context, start, end string) ([]*verse.Entry, error) {
	var out []*verse.Entry
	for date, e := range v.entries {
		if date >= start && date <= end {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (v *memVerses) Upsert(_ context.Context, updates []verse.Update) error {
	if v.entries == nil {
		v.entries = map[string]*verse.Entry{}
	}
	apply := func(dst *sql.NullString, src *string) {
		if src == nil {
			return
		}
		*dst = sql.NullString{String: *src, Valid: *src != ""}
	}
	for _, u := range updates {
		e, ok := v.entries[u.Date]
		if !ok {
			e = &verse.Entry{Date: u.Date}
			v.entries[u.Date] = e
		}
		apply(&e.Small, u.Small)
		apply(&e.Medium, u.Medium)
		apply(&e.Large, u.Large)
	}
	return nil
}

type sentSMS struct {
	Msg    sms.Message
	Phones []string
	Bulk   bool
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	fail func(phones []string) error
}

func (f *fakeSMS) record(msg sms.Message, phones []string, bulk bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(phones); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sentSMS{Msg: msg, Phones: phones, Bulk: bulk})
	return nil
}

func (f *fakeSMS) Send(_ context.Context, msg sms.Message, phone string) error {
	return f.record(msg, []string{phone}, false)
}

func (f *fakeSMS) SendBulk(_ context.Context, msg sms.Message, phones []string) error {
	return f.record(msg, append([]string(nil), phones...), true)
}

func (f *fakeSMS) all() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

// individualTo returns the individual messages delivered to phone.
func (f *fakeSMS) individualTo(phone string) []sms.Message {
	var out []sms.Message
	for _, s := range f.all() {
		if !s.Bulk && s.Phones[0] == phone {
			out = append(out, s.Msg)
		}
	}
	return out
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *fakeAlerter) Alert(_ context.Context, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
}

var errGateway = errors.New("gateway unavailable")
