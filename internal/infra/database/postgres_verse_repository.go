package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prayer_attendance/internal/domain/verse"
)

type PostgresVerseRepository struct {
	db *sql.DB
}

func NewPostgresVerseRepository(db *sql.DB) *PostgresVerseRepository {
	return &PostgresVerseRepository{db: db}
}

func (r *PostgresVerseRepository) GetByDate(ctx context.Context, date string) (*verse.Entry, error) {
	query := `SELECT to_char(verse_date, 'YYYY-MM-DD'), small, medium, large
               FROM daily_verses WHERE verse_date = $1`
	e := &verse.Entry{}
	err := r.db.QueryRowContext(ctx, query, date).Scan(&e.Date, &e.Small, &e.Medium, &e.Large)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, verse.ErrVerseNotFound
		}
		return nil, fmt.Errorf("error getting daily verse: %w", err)
	}
	return e, nil
}

func (r *PostgresVerseRepository) ListRange(ctx context.Context, start, end string) ([]*verse.Entry, error) {
	query := `SELECT to_char(verse_date, 'YYYY-MM-DD'), small, medium, large
               FROM daily_verses WHERE verse_date BETWEEN $1 AND $2 ORDER BY verse_date`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("error listing daily verses: %w", err)
	}
	defer rows.Close()

	entries := make([]*verse.Entry, 0)
	for rows.Next() {
		e := &verse.Entry{}
		if err := rows.Scan(&e.Date, &e.Small, &e.Medium, &e.Large); err != nil {
			return nil, fmt.Errorf("error scanning daily verse: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily verses: %w", err)
	}
	return entries, nil
}

// Upsert applies all updates in one transaction. A column is only overwritten when its
// field was supplied; an empty string stores NULL.
func (r *PostgresVerseRepository) Upsert(ctx context.Context, updates []verse.Update) error {
	query := `INSERT INTO daily_verses (verse_date, small, medium, large)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (verse_date) DO UPDATE SET
                   small  = CASE WHEN $5 THEN EXCLUDED.small  ELSE daily_verses.small  END,
                   medium = CASE WHEN $6 THEN EXCLUDED.medium ELSE daily_verses.medium END,
                   large  = CASE WHEN $7 THEN EXCLUDED.large  ELSE daily_verses.large  END`

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, u := range updates {
			small, setSmall := verseColumn(u.Small)
			medium, setMedium := verseColumn(u.Medium)
			large, setLarge := verseColumn(u.Large)
			if _, err := tx.ExecContext(ctx, query, u.Date, small, medium, large, setSmall, setMedium, setLarge); err != nil {
				return fmt.Errorf("error upserting daily verse for %s: %w", u.Date, err)
			}
		}
		return nil
	})
}

func verseColumn(v *string) (sql.NullString, bool) {
	if v == nil {
		return sql.NullString{}, false
	}
	return sql.NullString{String: *v, Valid: *v != ""}, true
}
