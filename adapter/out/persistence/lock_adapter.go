package persistence

import (
	"context"

	"mailtriage/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Advisory lock key space for sync batches. Keeps email-sync locks from
// colliding with any other advisory lock users in the same database.
const syncLockClass = int64(0x4d41494c) // "MAIL"

// syncLockKey folds the class into the user id. XOR with a constant is a
// bijection over int64, so no two user ids share a key.
func syncLockKey(userID int64) int64 {
	return syncLockClass<<32 ^ userID
}

// LockAdapter implements out.BatchLocker with Postgres advisory locks.
// The lock is session-scoped, so each acquisition pins a dedicated pool
// connection until released.
type LockAdapter struct {
	pool *pgxpool.Pool
}

// NewLockAdapter creates a new LockAdapter.
func NewLockAdapter(pool *pgxpool.Pool) *LockAdapter {
	return &LockAdapter{pool: pool}
}

// Acquire takes the per-user sync lock, returning a release func, or
// ErrLockBusy when another batch already holds it.
func (a *LockAdapter) Acquire(ctx context.Context, userID int64) (func(), error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var locked bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, syncLockKey(userID)).Scan(&locked)
	if err != nil {
		conn.Release()
		return nil, err
	}
	if !locked {
		conn.Release()
		return nil, ErrLockBusy
	}

	release := func() {
		// Unlock on the same session that acquired the lock. Background
		// context: release must work even after the batch context is done.
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, syncLockKey(userID)); err != nil {
			logger.WithError(err).Warn("Failed to release sync lock for user %d", userID)
		}
		conn.Release()
	}
	return release, nil
}
