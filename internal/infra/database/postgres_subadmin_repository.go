package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"prayer_attendance/internal/domain/member"
)

type PostgresSubAdminRepository struct {
	db *sql.DB
}

func NewPostgresSubAdminRepository(db *sql.DB) *PostgresSubAdminRepository {
	return &PostgresSubAdminRepository{db: db}
}

func (r *PostgresSubAdminRepository) GetAll(ctx context.Context) (member.SubAdminAssignments, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT stream, member_id FROM sub_admins ORDER BY stream`)
	if err != nil {
		return nil, fmt.Errorf("error listing sub-admins: %w", err)
	}
	defer rows.Close()

	assignments := member.SubAdminAssignments{}
	for rows.Next() {
		var (
			stream   member.Stream
			memberID int64
		)
		if err := rows.Scan(&stream, &memberID); err != nil {
			return nil, fmt.Errorf("error scanning sub-admin: %w", err)
		}
		assignments[stream] = memberID
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sub-admins: %w", err)
	}
	return assignments, nil
}

// ReplaceAll swaps the whole table in one transaction.
func (r *PostgresSubAdminRepository) ReplaceAll(ctx context.Context, assignments member.SubAdminAssignments) error {
	streams := make([]string, 0, len(assignments))
	for s := range assignments {
		streams = append(streams, string(s))
	}
	sort.Strings(streams)

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sub_admins`); err != nil {
			return fmt.Errorf("error clearing sub-admins: %w", err)
		}
		for _, s := range streams {
			_, err := tx.ExecContext(ctx, `INSERT INTO sub_admins (stream, member_id) VALUES ($1, $2)`,
				s, assignments[member.Stream(s)])
			if err != nil {
				return fmt.Errorf("error assigning sub-admin for %s: %w", s, err)
			}
		}
		return nil
	})
}

func (r *PostgresSubAdminRepository) PhoneForStream(ctx context.Context, stream member.Stream) (string, error) {
	query := `SELECT m.phone FROM sub_admins s JOIN members m ON m.id = s.member_id WHERE s.stream = $1`
	var phone string
	err := r.db.QueryRowContext(ctx, query, stream).Scan(&phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", member.ErrNoSubAdmin
		}
		return "", fmt.Errorf("error getting sub-admin phone: %w", err)
	}
	return phone, nil
}

func (r *PostgresSubAdminRepository) IsSubAdmin(ctx context.Context, memberID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sub_admins WHERE member_id = $1)`, memberID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking sub-admin: %w", err)
	}
	return exists, nil
}
