package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"prayer_attendance/internal/domain/member"
	"prayer_attendance/internal/domain/sms"
	"prayer_attendance/internal/domain/verse"

	"github.com/sirupsen/logrus"
)

// Application-level errors for the admin surface.
var (
	ErrAdminNotAuthorized = errors.New("admin pin is not valid")
	ErrInvalidMember      = errors.New("invalid member")
	ErrInvalidSubAdmins   = errors.New("invalid sub-admin assignment")
	ErrInvalidVerseRange  = errors.New("invalid verse date range")
)

var civilDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type AdminService struct {
	members        member.Repository
	subAdmins      member.SubAdminRepository
	verses         verse.Repository
	messages       *Messages
	dispatcher     *Dispatcher
	adminPin       string
	monitorContact string
	countryCode    string
	logger         *logrus.Entry
}

func NewAdminService(
	members member.Repository,
	subAdmins member.SubAdminRepository,
	verses verse.Repository,
	messages *Messages,
	dispatcher *Dispatcher,
	adminPin, monitorContact, countryCode string,
	logger *logrus.Entry,
) *AdminService {
	if countryCode == "" {
		countryCode = member.DefaultCountryCode
	}
	return &AdminService{
		members:        members,
		subAdmins:      subAdmins,
		verses:         verses,
		messages:       messages,
		dispatcher:     dispatcher,
		adminPin:       adminPin,
		monitorContact: monitorContact,
		countryCode:    countryCode,
		logger:         logger,
	}
}

// CheckPin reports whether pin matches the configured admin PIN. An unset PIN never matches.
func (s *AdminService) CheckPin(pin string) bool {
	if s.adminPin == "" || pin == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pin), []byte(s.adminPin)) == 1
}

func (s *AdminService) Authorize(pin string) error {
	if !s.CheckPin(pin) {
		return ErrAdminNotAuthorized
	}
	return nil
}

func (s *AdminService) ListMembers(ctx context.Context) ([]*member.Member, error) {
	members, err := s.members.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *AdminService) GetMember(ctx context.Context, id int64) (*member.Member, error) {
	return s.members.GetByID(ctx, id)
}

// RegisterMember validates and stores a new member. Attendance state always starts empty.
func (s *AdminService) RegisterMember(ctx context.Context, m *member.Member) (*member.Member, error) {
	if err := s.normalize(m); err != nil {
		return nil, err
	}

	_, err := s.members.FindByPhoneAndStream(ctx, m.Phone, m.Stream)
	if err == nil {
		return nil, member.ErrDuplicatePhoneStream
	}
	if !errors.Is(err, member.ErrMemberNotFound) {
		return nil, fmt.Errorf("failed to check existing member: %w", err)
	}

	m.AttendanceStartTime.Valid = false
	m.AttendanceEndTime.Valid = false
	if err := s.members.Create(ctx, m); err != nil {
		if errors.Is(err, member.ErrDuplicatePhoneStream) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"member_id": m.ID, "stream": m.Stream}).Info("Member registered")
	return m, nil
}

// UpdateMember replaces a member's profile. Attendance timestamps are kept; a change of the
// lock flag notifies the member and the monitoring contact.
func (s *AdminService) UpdateMember(ctx context.Context, id int64, changes *member.Member) (*member.Member, error) {
	if err := s.normalize(changes); err != nil {
		return nil, err
	}
	current, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	other, err := s.members.FindByPhoneAndStream(ctx, changes.Phone, changes.Stream)
	switch {
	case err == nil && other.ID != id:
		return nil, member.ErrDuplicatePhoneStream
	case err != nil && !errors.Is(err, member.ErrMemberNotFound):
		return nil, fmt.Errorf("failed to check existing member: %w", err)
	}

	wasLocked := current.IsLocked
	updated := *current
	updated.Name = changes.Name
	updated.Phone = changes.Phone
	updated.Stream = changes.Stream
	updated.DateOfBirth = changes.DateOfBirth
	updated.DateOfMarriage = changes.DateOfMarriage
	updated.Address = changes.Address
	updated.MinPrayerMinutes = changes.MinPrayerMinutes
	updated.MinReadingMinutes = changes.MinReadingMinutes
	updated.DailyVerse = changes.DailyVerse
	updated.IsLocked = changes.IsLocked

	if err := s.members.Update(ctx, &updated); err != nil {
		if errors.Is(err, member.ErrDuplicatePhoneStream) || errors.Is(err, member.ErrMemberNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update member %d: %w", id, err)
	}

	log := s.logger.WithField("member_id", id)
	log.Info("Member updated")
	if wasLocked != updated.IsLocked {
		s.notifyLockChange(ctx, &updated, log)
	}
	return &updated, nil
}

func (s *AdminService) notifyLockChange(ctx context.Context, m *member.Member, log *logrus.Entry) {
	var (
		msg  sms.Message
		err  error
		name string
	)
	if m.IsLocked {
		msg, err = s.messages.Lock(m)
		name = "admin_lock"
	} else {
		msg, err = s.messages.Unlock(m)
		name = "admin_unlock"
	}
	if err != nil {
		log.WithError(err).Error("Failed to render lock change notification")
		return
	}
	log.WithField("locked", m.IsLocked).Info("Lock flag changed by admin")
	s.dispatcher.SendCopies(ctx, name, msg, m.Phone, s.monitorContact)
}

func (s *AdminService) RemoveMember(ctx context.Context, id int64) error {
	if err := s.members.Delete(ctx, id); err != nil {
		if errors.Is(err, member.ErrMemberNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete member %d: %w", id, err)
	}
	s.logger.WithField("member_id", id).Info("Member removed")
	return nil
}

func (s *AdminService) GetSubAdmins(ctx context.Context) (member.SubAdminAssignments, error) {
	assignments, err := s.subAdmins.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sub-admins: %w", err)
	}
	return assignments, nil
}

// UpdateSubAdmins replaces the whole assignment table. Only call-flow streams may be
// assigned and every referenced member must exist.
func (s *AdminService) UpdateSubAdmins(ctx context.Context, assignments member.SubAdminAssignments) error {
	for stream, memberID := range assignments {
		if !stream.CallFlowEligible() {
			return fmt.Errorf("%w: stream %q does not take part in the call flow", ErrInvalidSubAdmins, stream)
		}
		if _, err := s.members.GetByID(ctx, memberID); err != nil {
			if errors.Is(err, member.ErrMemberNotFound) {
				return fmt.Errorf("%w: member %d does not exist", ErrInvalidSubAdmins, memberID)
			}
			return fmt.Errorf("failed to load sub-admin %d: %w", memberID, err)
		}
	}
	if err := s.subAdmins.ReplaceAll(ctx, assignments); err != nil {
		return fmt.Errorf("failed to store sub-admins: %w", err)
	}
	s.logger.WithField("assignments", len(assignments)).Info("Sub-admins updated")
	return nil
}

func (s *AdminService) GetVerses(ctx context.Context, start, end string) ([]*verse.Entry, error) {
	if !validCivilDate(start) || !validCivilDate(end) || start > end {
		return nil, ErrInvalidVerseRange
	}
	entries, err := s.verses.ListRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list verses: %w", err)
	}
	return entries, nil
}

func (s *AdminService) UpsertVerses(ctx context.Context, updates []verse.Update) error {
	for _, u := range updates {
		if !validCivilDate(u.Date) {
			return fmt.Errorf("%w: date %q", ErrInvalidVerseRange, u.Date)
		}
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.verses.Upsert(ctx, updates); err != nil {
		return fmt.Errorf("failed to upsert verses: %w", err)
	}
	s.logger.WithField("dates", len(updates)).Info("Daily verses updated")
	return nil
}

func (s *AdminService) normalize(m *member.Member) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMember)
	}
	m.Phone = member.CanonicalPhone(m.Phone, s.countryCode)
	if m.Phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidMember)
	}
	stream, err := member.ParseStream(string(m.Stream))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMember, err)
	}
	m.Stream = stream
	if m.DailyVerse != "" && !m.DailyVerse.Valid() {
		return fmt.Errorf("%w: unknown verse size %q", ErrInvalidMember, m.DailyVerse)
	}
	if m.MinPrayerMinutes < 0 || m.MinReadingMinutes < 0 {
		return fmt.Errorf("%w: minimum durations must not be negative", ErrInvalidMember)
	}
	if m.MinPrayerMinutes == 0 {
		m.MinPrayerMinutes = member.DefaultMinPrayerMinutes
	}
	if m.MinReadingMinutes == 0 {
		m.MinReadingMinutes = member.DefaultMinReadingMinutes
	}
	return nil
}

func validCivilDate(s string) bool {
	if !civilDatePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
