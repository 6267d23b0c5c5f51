// Package distlock serializes work across processes that share a database.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
)

// PGAdvisoryLock is a PostgreSQL session advisory lock.
//
// Advisory locks belong to a session, so the lock is bound to a single
// *sql.Conn rather than the pool; unlocking through a different pooled
// connection would silently do nothing. The lock is released by the server
// if the connection drops.
type PGAdvisoryLock struct {
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock derives a stable lock ID from key.
func NewPGAdvisoryLock(conn *sql.Conn, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{conn: conn, lockID: LockID(key)}
}

// LockID hashes key into the bigint keyspace used by pg_advisory_lock.
func LockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Lock blocks until the lock is held or ctx is done.
func (l *PGAdvisoryLock) Lock(ctx context.Context) error {
	if _, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.lockID); err != nil {
		return fmt.Errorf("advisory lock %d: %w", l.lockID, err)
	}
	return nil
}

// Unlock releases the lock held by this session.
func (l *PGAdvisoryLock) Unlock(ctx context.Context) error {
	if _, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		return fmt.Errorf("advisory unlock %d: %w", l.lockID, err)
	}
	return nil
}
