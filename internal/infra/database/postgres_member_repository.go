package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prayer_attendance/internal/domain/member"

	"github.com/lib/pq"
)

const memberColumns = `id, name, phone, stream, date_of_birth, date_of_marriage, address,
	min_prayer_minutes, min_reading_minutes, is_locked, daily_verse,
	attendance_start_time, attendance_end_time, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*member.Member, error) {
	m := &member.Member{}
	var verse sql.NullString
	err := row.Scan(&m.ID, &m.Name, &m.Phone, &m.Stream, &m.DateOfBirth, &m.DateOfMarriage, &m.Address,
		&m.MinPrayerMinutes, &m.MinReadingMinutes, &m.IsLocked, &verse,
		&m.AttendanceStartTime, &m.AttendanceEndTime, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.DailyVerse = member.VerseSize(verse.String)
	return m, nil
}

func nullVerse(v member.VerseSize) sql.NullString {
	return sql.NullString{String: string(v), Valid: v != ""}
}

type PostgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) *PostgresMemberRepository {
	return &PostgresMemberRepository{db: db}
}

func (r *PostgresMemberRepository) Create(ctx context.Context, m *member.Member) error {
	query := `INSERT INTO members (name, phone, stream, date_of_birth, date_of_marriage, address,
               min_prayer_minutes, min_reading_minutes, is_locked, daily_verse)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, m.Name, m.Phone, m.Stream, m.DateOfBirth, m.DateOfMarriage, m.Address,
		m.MinPrayerMinutes, m.MinReadingMinutes, m.IsLocked, nullVerse(m.DailyVerse)).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return member.ErrDuplicatePhoneStream
		}
		return fmt.Errorf("error creating member: %w", err)
	}
	return nil
}

func (r *PostgresMemberRepository) GetByID(ctx context.Context, id int64) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, member.ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting member by ID: %w", err)
	}
	return m, nil
}

func (r *PostgresMemberRepository) FindByPhoneAndStream(ctx context.Context, phone string, stream member.Stream) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE phone = $1 AND stream = $2`
	m, err := scanMember(r.db.QueryRowContext(ctx, query, phone, stream))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, member.ErrMemberNotFound
		}
		return nil, fmt.Errorf("error finding member by phone and stream: %w", err)
	}
	return m, nil
}

// Update writes the profile and lock flag. Unlocking also drops a pending queue entry so
// that a queued id always refers to a locked member.
func (r *PostgresMemberRepository) Update(ctx context.Context, m *member.Member) error {
	query := `UPDATE members
               SET name = $1, phone = $2, stream = $3, date_of_birth = $4, date_of_marriage = $5, address = $6,
                   min_prayer_minutes = $7, min_reading_minutes = $8, is_locked = $9, daily_verse = $10,
                   updated_at = NOW()
               WHERE id = $11
               RETURNING updated_at`

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query, m.Name, m.Phone, m.Stream, m.DateOfBirth, m.DateOfMarriage, m.Address,
			m.MinPrayerMinutes, m.MinReadingMinutes, m.IsLocked, nullVerse(m.DailyVerse), m.ID).Scan(&m.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return member.ErrMemberNotFound
			}
			if isUniqueViolation(err) {
				return member.ErrDuplicatePhoneStream
			}
			return fmt.Errorf("error updating member: %w", err)
		}
		if !m.IsLocked {
			if _, err := tx.ExecContext(ctx, `DELETE FROM unlock_queue WHERE member_id = $1`, m.ID); err != nil {
				return fmt.Errorf("error clearing unlock queue entry: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresMemberRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading deleted rows: %w", err)
	}
	if n == 0 {
		return member.ErrMemberNotFound
	}
	return nil
}

func (r *PostgresMemberRepository) ListAll(ctx context.Context) ([]*member.Member, error) {
	return r.list(ctx, "all members", `SELECT `+memberColumns+` FROM members ORDER BY id`)
}

func (r *PostgresMemberRepository) MarkAttendanceStart(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `UPDATE members SET attendance_start_time = $2, updated_at = NOW()
               WHERE id = $1 AND attendance_start_time IS NULL AND is_locked = FALSE`
	return r.conditional(ctx, "marking attendance start", query, id, at)
}

func (r *PostgresMemberRepository) MarkAttendanceEnd(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `UPDATE members SET attendance_end_time = $2, updated_at = NOW()
               WHERE id = $1 AND attendance_start_time IS NOT NULL AND attendance_end_time IS NULL AND is_locked = FALSE`
	return r.conditional(ctx, "marking attendance end", query, id, at)
}

func (r *PostgresMemberRepository) Lock(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE members SET is_locked = TRUE, updated_at = NOW()
               WHERE id = $1 AND is_locked = FALSE AND attendance_end_time IS NULL`
	return r.conditional(ctx, "locking member", query, id)
}

func (r *PostgresMemberRepository) conditional(ctx context.Context, what, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("error %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error %s: %w", what, err)
	}
	return n == 1, nil
}

func (r *PostgresMemberRepository) ListAbsentees(ctx context.Context) ([]*member.Member, error) {
	return r.list(ctx, "absentees", `SELECT `+memberColumns+` FROM members
               WHERE is_locked = FALSE AND attendance_end_time IS NULL ORDER BY id`)
}

func (r *PostgresMemberRepository) BulkLock(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `UPDATE members SET is_locked = TRUE, updated_at = NOW()
               WHERE id = ANY($1) AND is_locked = FALSE
               RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error bulk locking members: %w", err)
	}
	defer rows.Close()

	locked := make([]int64, 0, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning locked member id: %w", err)
		}
		locked = append(locked, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locked members: %w", err)
	}
	return locked, nil
}

func (r *PostgresMemberRepository) WipeAttendanceTimes(ctx context.Context) (int64, error) {
	query := `UPDATE members SET attendance_start_time = NULL, attendance_end_time = NULL, updated_at = NOW()
               WHERE attendance_start_time IS NOT NULL OR attendance_end_time IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("error wiping attendance times: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading wiped rows: %w", err)
	}
	return n, nil
}

func (r *PostgresMemberRepository) ListWithVersePreference(ctx context.Context) ([]*member.Member, error) {
	return r.list(ctx, "verse subscribers", `SELECT `+memberColumns+` FROM members
               WHERE daily_verse IS NOT NULL ORDER BY id`)
}

func (r *PostgresMemberRepository) ListWithBirthday(ctx context.Context, monthDay string) ([]*member.Member, error) {
	return r.list(ctx, "birthdays", `SELECT `+memberColumns+` FROM members
               WHERE to_char(date_of_birth, 'MM-DD') = $1 ORDER BY id`, monthDay)
}

func (r *PostgresMemberRepository) list(ctx context.Context, what, query string, args ...any) ([]*member.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", what, err)
	}
	defer rows.Close()
	return collectMembers(rows, what)
}

func collectMembers(rows *sql.Rows, what string) ([]*member.Member, error) {
	members := make([]*member.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", what, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return members, nil
}
