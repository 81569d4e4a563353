package unlock

import (
	"context"

	"prayer_attendance/internal/domain/member"
)

// Queue is the durable set of members approved for unlocking. An id present in the
// queue implies that member is locked.
type Queue interface {
	// Enqueue adds a locked member; it is a no-op when the id is already queued or the
	// member is not locked, and reports whether a row was added.
	Enqueue(ctx context.Context, memberID int64) (bool, error)
	// Drain clears the lock flag of every queued member, empties the queue and returns
	// the members it unlocked. Both happen in one unit; an empty queue yields nil.
	Drain(ctx context.Context) ([]*member.Member, error)
}
