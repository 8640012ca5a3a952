/*
store.go - Record store contract

PURPOSE:
  Defines the boundary between the engine and the shared record store.
  The store exposes two logical tables, Students and Payments, with
  full-snapshot reads and single-row appends. Nothing is transactional
  across rows or tables, and there is no unique constraint or
  compare-and-swap. Mutual exclusion is the engine's job (see lock.go).

READ SEMANTICS:
  A read reflects every append that completed before it began. Appends by
  concurrent writers may or may not be visible to a read already in
  progress. Rows come back in append order.

APPEND-ONLY CONTRACT:
  - AppendStudent / AppendPayment: the only ways to add rows
  - UpdateStudentStatus: the single permitted mutation (Status Deriver)
  - NO update of any other student field, NO update or delete of payments

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: in-memory for tests and demos
*/
package ledger

import "context"

// RecordStore is the Record Store Adapter.
// Implementations validate rows at the boundary and fail fast on malformed
// data instead of handing it downstream.
type RecordStore interface {
	// ListStudents returns every student row in append order.
	ListStudents(ctx context.Context) ([]Student, error)

	// ListPayments returns every payment row in append order.
	ListPayments(ctx context.Context) ([]Payment, error)

	// AppendStudent adds a student row.
	AppendStudent(ctx context.Context, s Student) error

	// AppendPayment adds a payment row.
	AppendPayment(ctx context.Context, p Payment) error

	// UpdateStudentStatus rewrites the status of one student.
	UpdateStudentStatus(ctx context.Context, studentID string, status Status) error
}

// PaymentGetter is implemented by stores that can fetch one payment by
// receipt number without listing the table. A missing receipt is
// ErrPaymentNotFound.
type PaymentGetter interface {
	GetPayment(ctx context.Context, receiptNo string) (Payment, error)
}

// Resetter is implemented by stores that can be wiped (dev and demo only).
type Resetter interface {
	Reset(ctx context.Context) error
}
