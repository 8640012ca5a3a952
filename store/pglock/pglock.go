/*
Package pglock provides a ledger.Locker backed by PostgreSQL advisory locks.

PURPOSE:
  ledger.KeyedMutex only serializes recorders inside one process. When
  several servers write to the same record store, they take the receipt and
  student locks here instead, so receipt allocation stays single-writer
  across the whole deployment.

HOW:
  Session-level advisory locks live on a connection, so Lock pins one
  *sql.Conn from the pool for the lifetime of the lock:

    SELECT pg_advisory_lock($1::int4, hashtext($2))    -- blocks until granted
    SELECT pg_advisory_unlock($1::int4, hashtext($2))  -- on release

  The first key is the lock kind (student, receipt), the second the hashed
  rest of the key. A student key and a receipt key never share a lock, so
  one recorder holding both cannot block on itself through a hash
  collision. Two students whose phones collide only serialize.

  Cancelling ctx while waiting aborts the query (lib/pq sends a cancel
  request) and the connection goes back to the pool.

USAGE:
  locker, err := pglock.New("postgres://fees@db/fees?sslmode=disable")
  engine := ledger.NewEngine(store, locker)
*/
package pglock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/warp/fee-ledger/ledger"
)

// Locker hands out PostgreSQL advisory locks.
type Locker struct {
	db *sql.DB
}

var _ ledger.Locker = (*Locker)(nil)

// New opens a connection pool to dsn and checks it is reachable.
func New(dsn string) (*Locker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach lock database: %w", err)
	}
	return NewFromDB(db), nil
}

// NewFromDB wraps an existing pool.
func NewFromDB(db *sql.DB) *Locker {
	return &Locker{db: db}
}

// Close closes the pool. Held locks are released by the server when their
// connections close.
func (l *Locker) Close() error {
	return l.db.Close()
}

// Lock blocks until the advisory lock for key is granted or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get lock connection: %w", err)
	}
	space, name := lockSpace(key)
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1::int4, hashtext($2))", space, name); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire advisory lock %s: %w", key, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled; unlocking must still happen.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1::int4, hashtext($2))", space, name); err != nil {
			log.Printf("[pglock] Failed to release %s: %v", key, err)
			// Discarding the connection ends the session, which drops the lock.
			conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		conn.Close()
	}, nil
}

// Lock kinds, the first half of the two-key advisory lock.
const (
	spaceOther   int32 = 0
	spaceStudent int32 = 1
	spaceReceipt int32 = 2
)

// lockSpace splits a ledger lock key into its kind and the name hashed
// within that kind. Unknown kinds keep the whole key as the name.
func lockSpace(key string) (int32, string) {
	kind, name, ok := strings.Cut(key, ":")
	if !ok {
		return spaceOther, key
	}
	switch kind {
	case "student":
		return spaceStudent, name
	case "receipt":
		return spaceReceipt, name
	default:
		return spaceOther, key
	}
}
