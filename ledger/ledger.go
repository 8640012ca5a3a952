/*
ledger.go - Engine facade over one record store

PURPOSE:
  Bundles the components that share a store and a locker so callers (HTTP
  handlers, the CLI, the scheduler) wire the engine once:

    Reader   - point-in-time student state, read-only
    Recorder - the only writer of payment rows
    Sweeper  - the only writer of student status

CRITICAL INVARIANTS (after every successful RecordPayment):
  1. Per year, receipt numbers are unique and run 0001..N without gaps
  2. Per student, installment numbers run 1..K
  3. running_total_paid of the Nth payment = sum of the first N amounts
  4. running_remaining = total_fees - running_total_paid, never negative
  5. A student row exists before any payment referencing it

  The engine holds no session state; every call carries its own context.

SEE ALSO:
  - recorder.go: how 1-5 are maintained without store transactions
  - verify.go: how 1-5 are checked after the fact
*/
package ledger

import "context"

// Engine is the fee ledger engine.
type Engine struct {
	Store    RecordStore
	Reader   *Reader
	Recorder *Recorder
	Sweeper  *Sweeper
}

// NewEngine wires the engine over store, serializing writers with locker.
func NewEngine(store RecordStore, locker Locker) *Engine {
	rec := NewRecorder(store, locker)
	return &Engine{
		Store:    store,
		Reader:   rec.Reader,
		Recorder: rec,
		Sweeper:  &Sweeper{Store: store, Reader: rec.Reader},
	}
}

// RecordPayment records one payment. See Recorder.RecordPayment.
func (e *Engine) RecordPayment(ctx context.Context, in PaymentIntent) (*Receipt, error) {
	return e.Recorder.RecordPayment(ctx, in)
}

// CurrentState returns the ledger of the student registered under phone.
func (e *Engine) CurrentState(ctx context.Context, phone string) (State, error) {
	return e.Reader.CurrentState(ctx, e.NormalizePhone(phone))
}

// NormalizePhone returns the lookup key of phone under the recorder's
// country code.
func (e *Engine) NormalizePhone(phone string) string {
	return NormalizePhone(e.Recorder.CountryCode, phone)
}

// Sweep recomputes every student's status for today.
func (e *Engine) Sweep(ctx context.Context, today Date) (SweepResult, error) {
	return e.Sweeper.Sweep(ctx, today)
}

// Verify reads both tables and checks them against the ledger invariants.
func (e *Engine) Verify(ctx context.Context) (VerifyReport, error) {
	students, payments, err := e.Reader.Snapshot(ctx)
	if err != nil {
		return VerifyReport{}, err
	}
	return Verify(students, payments), nil
}

// FindPayment returns the payment with the given receipt number together
// with its student. Stores implementing PaymentGetter are asked for the
// single row; others are scanned.
func (e *Engine) FindPayment(ctx context.Context, receiptNo string) (Student, Payment, error) {
	if getter, ok := e.Store.(PaymentGetter); ok {
		p, err := e.Reader.Payment(ctx, getter, receiptNo)
		if err != nil {
			return Student{}, Payment{}, err
		}
		students, err := e.Reader.Students(ctx)
		if err != nil {
			return Student{}, Payment{}, err
		}
		return studentOf(students, p)
	}

	students, payments, err := e.Reader.Snapshot(ctx)
	if err != nil {
		return Student{}, Payment{}, err
	}
	for _, p := range payments {
		if p.ReceiptNo == receiptNo {
			return studentOf(students, p)
		}
	}
	return Student{}, Payment{}, ErrPaymentNotFound
}

func studentOf(students []Student, p Payment) (Student, Payment, error) {
	s := FindByID(students, p.StudentRef)
	if s == nil {
		return Student{}, p, &InconsistentStateError{Kind: KindOrphanPayment, Ref: p.ReceiptNo, Detail: "references unknown student " + p.StudentRef}
	}
	return *s, p, nil
}
