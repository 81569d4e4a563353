package member

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMemberNotFound       = errors.New("member not found")
	ErrDuplicatePhoneStream = errors.New("member with this phone and stream already exists")
	ErrNoSubAdmin           = errors.New("no sub-admin assigned for stream")
)

// Repository persists members. The Mark*/Lock methods are single conditional updates
// and report whether the row changed.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id int64) (*Member, error)
	FindByPhoneAndStream(ctx context.Context, phone string, stream Stream) (*Member, error)
	Update(ctx context.Context, m *Member) error
	Delete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]*Member, error)

	// MarkAttendanceStart sets the start time when it is unset and the member is unlocked.
	MarkAttendanceStart(ctx context.Context, id int64, at time.Time) (bool, error)
	// MarkAttendanceEnd sets the end time when start is set, end is unset and the member is unlocked.
	MarkAttendanceEnd(ctx context.Context, id int64, at time.Time) (bool, error)
	// Lock sets the lock flag when the member is unlocked and has not completed the session.
	Lock(ctx context.Context, id int64) (bool, error)

	ListAbsentees(ctx context.Context) ([]*Member, error)
	// BulkLock locks ids in a single statement and returns the ids that changed.
	BulkLock(ctx context.Context, ids []int64) ([]int64, error)
	WipeAttendanceTimes(ctx context.Context) (int64, error)
	ListWithVersePreference(ctx context.Context) ([]*Member, error)
	// ListWithBirthday returns members whose date of birth falls on monthDay (MM-DD).
	ListWithBirthday(ctx context.Context, monthDay string) ([]*Member, error)
}

// SubAdminRepository stores the stream → approving member lookup table.
type SubAdminRepository interface {
	GetAll(ctx context.Context) (SubAdminAssignments, error)
	ReplaceAll(ctx context.Context, assignments SubAdminAssignments) error
	// PhoneForStream returns ErrNoSubAdmin when the stream has no assignment.
	PhoneForStream(ctx context.Context, stream Stream) (string, error)
	IsSubAdmin(ctx context.Context, memberID int64) (bool, error)
}
