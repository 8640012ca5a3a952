/*
lock.go - Advisory locks for the two hazard points of the ledger

PURPOSE:
  The record store offers no transactions, so the engine serializes the two
  read-then-append sequences that would otherwise race:
    1. receipt allocation, keyed by year       ("receipt:2024")
    2. installment numbering, keyed by student ("student:9998887776")

  The student key is the phone number because a brand-new student has no id
  until it is committed; every payment for a student is found through its
  phone, so serializing by phone also serializes by student id.

LOCK ORDER:
  Always student first, then receipt. Every caller takes them in the same
  order, so two recorders can never wait on each other in a cycle.

IMPLEMENTATIONS:
  - KeyedMutex: in-process, enough for a single server
  - store/pglock: PostgreSQL advisory locks, spans processes
*/
package ledger

import (
	"context"
	"strconv"
	"sync"
)

// Locker grants mutual exclusion per key.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned function
	// releases the lock and must be called exactly once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// StudentLockKey is the lock key serializing installment numbering.
func StudentLockKey(phone string) string { return "student:" + phone }

// ReceiptLockKey is the lock key serializing receipt allocation for a year.
func ReceiptLockKey(year int) string { return "receipt:" + strconv.Itoa(year) }

// =============================================================================
// KEYED MUTEX - In-process Locker
// =============================================================================

// KeyedMutex is a Locker backed by one buffered channel per key.
// Entries are reference counted and dropped when no goroutine holds or
// waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// held reports how many keys are tracked. Used by tests.
func (k *KeyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
