package verse

import (
	"context"
	"database/sql"
	"errors"

	"prayer_attendance/internal/domain/member"
)

var ErrVerseNotFound = errors.New("daily verse not found")

// Entry holds the verses scheduled for one civil date (YYYY-MM-DD).
type Entry struct {
	Date   string
	Small  sql.NullString
	Medium sql.NullString
	Large  sql.NullString
}

// Text returns the verse for a size preference, or "" when none is set.
func (e *Entry) Text(size member.VerseSize) string {
	var v sql.NullString
	switch size {
	case member.VerseSmall:
		v = e.Small
	case member.VerseMedium:
		v = e.Medium
	case member.VerseLarge:
		v = e.Large
	}
	if !v.Valid {
		return ""
	}
	return v.String
}

// Update carries an upsert for one date. A nil field leaves the stored text untouched,
// a pointer to "" clears it.
type Update struct {
	Date   string
	Small  *string
	Medium *string
	Large  *string
}

type Repository interface {
	GetByDate(ctx context.Context, date string) (*Entry, error)
	ListRange(ctx context.Context, start, end string) ([]*Entry, error)
	Upsert(ctx context.Context, updates []Update) error
}
