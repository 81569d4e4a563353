package database

import (
	"context"
	"database/sql"
	"fmt"

	"prayer_attendance/internal/domain/member"

	"github.com/lib/pq"
)

// PostgresUnlockQueue keeps approved unlocks in the unlock_queue table so the drain can
// share a transaction with the members update.
type PostgresUnlockQueue struct {
	db *sql.DB
}

func NewPostgresUnlockQueue(db *sql.DB) *PostgresUnlockQueue {
	return &PostgresUnlockQueue{db: db}
}

func (q *PostgresUnlockQueue) Enqueue(ctx context.Context, memberID int64) (bool, error) {
	query := `INSERT INTO unlock_queue (member_id)
               SELECT id FROM members WHERE id = $1 AND is_locked = TRUE
               ON CONFLICT (member_id) DO NOTHING`
	res, err := q.db.ExecContext(ctx, query, memberID)
	if err != nil {
		return false, fmt.Errorf("error enqueueing member for unlock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading enqueued rows: %w", err)
	}
	return n == 1, nil
}

// Drain unlocks and dequeues exactly the ids it read; entries added concurrently stay for
// the next run.
func (q *PostgresUnlockQueue) Drain(ctx context.Context) ([]*member.Member, error) {
	var unlocked []*member.Member
	err := withTx(ctx, q.db, func(tx *sql.Tx) error {
		ids, err := queuedIDs(ctx, tx)
		if err != nil || len(ids) == 0 {
			return err
		}

		rows, err := tx.QueryContext(ctx, `UPDATE members SET is_locked = FALSE, updated_at = NOW()
               WHERE id = ANY($1)
               RETURNING `+memberColumns, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("error unlocking queued members: %w", err)
		}
		unlocked, err = collectMembers(rows, "unlocked members")
		rows.Close()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM unlock_queue WHERE member_id = ANY($1)`, pq.Array(ids)); err != nil {
			return fmt.Errorf("error clearing unlock queue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

func queuedIDs(ctx context.Context, tx *sql.Tx) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT member_id FROM unlock_queue ORDER BY created_at, member_id FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("error reading unlock queue: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning queued member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unlock queue: %w", err)
	}
	return ids, nil
}
