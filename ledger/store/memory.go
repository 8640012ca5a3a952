// Package store provides RecordStore implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/fee-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is an append-only in-memory RecordStore.
//
// The hooks let tests stand in for a flaky network store or a foreign
// writer that ignores the engine's locks.
type Memory struct {
	mu       sync.RWMutex
	students []ledger.Student
	payments []ledger.Payment

	hookMu         sync.Mutex
	failNext       map[string]error
	onListPayments func(call int)
	listCalls      int
}

// Operation names accepted by FailNext.
const (
	OpListStudents  = "list students"
	OpListPayments  = "list payments"
	OpAppendStudent = "append student"
	OpAppendPayment = "append payment"
	OpUpdateStatus  = "update status"
)

func NewMemory() *Memory {
	return &Memory{failNext: make(map[string]error)}
}

// FailNext makes the next call of op return err.
func (m *Memory) FailNext(op string, err error) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.failNext[op] = err
}

// OnListPayments registers fn to run after every ListPayments snapshot is
// taken, with the 1-based call number. fn may append to the store.
func (m *Memory) OnListPayments(fn func(call int)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onListPayments = fn
	m.listCalls = 0
}

func (m *Memory) injected(op string) error {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	err := m.failNext[op]
	delete(m.failNext, op)
	return err
}

// ListStudents returns a copy of every student row in append order.
func (m *Memory) ListStudents(_ context.Context) ([]ledger.Student, error) {
	if err := m.injected(OpListStudents); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Student, len(m.students))
	copy(out, m.students)
	return out, nil
}

// ListPayments returns a copy of every payment row in append order.
func (m *Memory) ListPayments(_ context.Context) ([]ledger.Payment, error) {
	if err := m.injected(OpListPayments); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]ledger.Payment, len(m.payments))
	copy(out, m.payments)
	m.mu.RUnlock()

	m.hookMu.Lock()
	hook := m.onListPayments
	m.listCalls++
	call := m.listCalls
	m.hookMu.Unlock()
	if hook != nil {
		hook(call)
	}
	return out, nil
}

// AppendStudent adds a student row. Append-only.
func (m *Memory) AppendStudent(_ context.Context, s ledger.Student) error {
	if err := m.injected(OpAppendStudent); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = append(m.students, s)
	return nil
}

// AppendPayment adds a payment row. Append-only.
func (m *Memory) AppendPayment(_ context.Context, p ledger.Payment) error {
	if err := m.injected(OpAppendPayment); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
	return nil
}

// UpdateStudentStatus rewrites the status of every row with studentID.
func (m *Memory) UpdateStudentStatus(_ context.Context, studentID string, status ledger.Status) error {
	if err := m.injected(OpUpdateStatus); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.students {
		if m.students[i].ID == studentID {
			m.students[i].Status = status
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ledger.ErrStudentNotFound, studentID)
	}
	return nil
}

// Reset drops every row.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = nil
	m.payments = nil
	return nil
}

// Counts returns the number of student and payment rows.
func (m *Memory) Counts() (students, payments int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), len(m.payments)
}
