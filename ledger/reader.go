/*
reader.go - Point-in-time view of one student's ledger

PURPOSE:
  Builds the figures the recorder validates against: the student row (if
  any), that student's payments in append order, total paid, remaining
  balance and the next installment number. Totals are pure folds over
  immutable payment rows, so reading is safe without locks.

IDENTITY:
  The phone is only used to find the student row. Once found, payments are
  matched by student_ref, never by phone.

RETRIES:
  Reads may be retried on StoreUnavailable with a short exponential backoff.
  A row that cannot be parsed fails the same way every time, so it is
  returned at once as InconsistentState. Appends are never retried here
  (see recorder.go).
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// State is the ledger of one student at the time of the read.
type State struct {
	Student           *Student // nil when the phone is unseen
	Payments          []Payment
	TotalPaid         decimal.Decimal
	Remaining         decimal.Decimal
	NextInstallmentNo int
}

// Exists reports whether the student row has been committed.
func (s State) Exists() bool { return s.Student != nil }

// Reader reads ledger state from a RecordStore.
type Reader struct {
	Store RecordStore

	// ReadAttempts bounds retries of a failed read. Zero means one attempt.
	ReadAttempts int
	// RetryDelay is the first backoff delay; it doubles per attempt.
	RetryDelay time.Duration
}

// NewReader creates a reader with the default retry policy.
func NewReader(store RecordStore) *Reader {
	return &Reader{Store: store, ReadAttempts: 3, RetryDelay: 50 * time.Millisecond}
}

// CurrentState returns the state of the student registered under phone.
func (r *Reader) CurrentState(ctx context.Context, phone string) (State, error) {
	students, payments, err := r.Snapshot(ctx)
	if err != nil {
		return State{}, err
	}
	return BuildState(FindByPhone(students, phone), payments), nil
}

// StudentState returns the state of the student with the given id.
func (r *Reader) StudentState(ctx context.Context, studentID string) (State, error) {
	students, payments, err := r.Snapshot(ctx)
	if err != nil {
		return State{}, err
	}
	s := FindByID(students, studentID)
	if s == nil {
		return State{}, ErrStudentNotFound
	}
	return BuildState(s, payments), nil
}

// Snapshot reads both tables once.
func (r *Reader) Snapshot(ctx context.Context) ([]Student, []Payment, error) {
	students, err := retryRead(ctx, r, "list students", r.Store.ListStudents)
	if err != nil {
		return nil, nil, err
	}
	payments, err := r.Payments(ctx)
	if err != nil {
		return nil, nil, err
	}
	return students, payments, nil
}

// Students reads the students table.
func (r *Reader) Students(ctx context.Context) ([]Student, error) {
	return retryRead(ctx, r, "list students", r.Store.ListStudents)
}

// Payment fetches one payment through a store that supports direct lookup.
func (r *Reader) Payment(ctx context.Context, getter PaymentGetter, receiptNo string) (Payment, error) {
	rows, err := retryRead(ctx, r, "get payment", func(ctx context.Context) ([]Payment, error) {
		p, err := getter.GetPayment(ctx, receiptNo)
		if err != nil {
			return nil, err
		}
		return []Payment{p}, nil
	})
	if err != nil {
		return Payment{}, err
	}
	return rows[0], nil
}

// Payments reads the payments table.
func (r *Reader) Payments(ctx context.Context) ([]Payment, error) {
	return retryRead(ctx, r, "list payments", r.Store.ListPayments)
}

func retryRead[T any](ctx context.Context, r *Reader, op string, read func(context.Context) ([]T, error)) ([]T, error) {
	attempts := r.ReadAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := r.RetryDelay
	var err error
	for i := 0; i < attempts; i++ {
		var rows []T
		rows, err = read(ctx)
		if err == nil {
			return rows, nil
		}
		if errors.Is(err, ErrInconsistentState) || IsNotFound(err) {
			return nil, err
		}
		if ctx.Err() != nil || i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, storeErr(op, ctx.Err())
		}
		delay *= 2
	}
	return nil, storeErr(op, err)
}

// =============================================================================
// PURE HELPERS
// =============================================================================

// FindByPhone returns the first student registered under phone, in append
// order, or nil.
func FindByPhone(students []Student, phone string) *Student {
	for i := range students {
		if students[i].Phone == phone {
			s := students[i]
			return &s
		}
	}
	return nil
}

// FindByID returns the student with the given id, or nil.
func FindByID(students []Student, id string) *Student {
	for i := range students {
		if students[i].ID == id {
			s := students[i]
			return &s
		}
	}
	return nil
}

// PaymentsOf filters payments referencing studentID, keeping append order.
func PaymentsOf(studentID string, payments []Payment) []Payment {
	var out []Payment
	for _, p := range payments {
		if p.StudentRef == studentID {
			out = append(out, p)
		}
	}
	return out
}

// BuildState folds a student's payments into a State. A nil student yields
// an empty ledger with zero remaining.
func BuildState(student *Student, payments []Payment) State {
	st := State{
		Student:           student,
		TotalPaid:         decimal.Zero,
		Remaining:         decimal.Zero,
		NextInstallmentNo: 1,
	}
	if student == nil {
		return st
	}
	st.Payments = PaymentsOf(student.ID, payments)
	for _, p := range st.Payments {
		st.TotalPaid = st.TotalPaid.Add(p.Amount)
	}
	st.Remaining = student.TotalFees.Sub(st.TotalPaid)
	st.NextInstallmentNo = len(st.Payments) + 1
	return st
}
