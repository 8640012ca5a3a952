/*
errors.go - Centralized error types for the fee ledger engine

ERROR CATEGORIES:
  1. Validation errors - malformed or policy-violating input. Always raised
     before any store mutation, never retried.
  2. Store errors - transient I/O against the record store. Reads may be
     retried; appends are never blindly retried.
  3. Inconsistent state - anomalies found in committed rows. Logged and
     surfaced for manual reconciliation, never auto-repaired.

USAGE:
  receipt, err := recorder.RecordPayment(ctx, intent)
  var vErr *ledger.ValidationError
  if errors.As(err, &vErr) && vErr.Reason == ledger.ReasonAmountExceedsRemaining {
      // show remaining balance to the operator
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation wraps every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable wraps every StoreUnavailableError.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrInconsistentState wraps every InconsistentStateError.
	ErrInconsistentState = errors.New("inconsistent ledger state")

	// ErrSequenceConflict is returned when the receipt sequence for a year
	// moved between the allocation snapshot and the commit. Nothing has been
	// written; the caller should re-run the whole operation.
	ErrSequenceConflict = errors.New("receipt sequence changed during allocation")

	// ErrStudentNotFound is returned when a lookup finds no student.
	ErrStudentNotFound = errors.New("student not found")

	// ErrPaymentNotFound is returned when a lookup finds no payment.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrMalformedReceiptNo is returned for receipt numbers that do not
	// follow PREFIX-YYYY-NNNN.
	ErrMalformedReceiptNo = errors.New("malformed receipt number")
)

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// Reason identifies why an intent was rejected.
type Reason string

const (
	ReasonMissingAdmissionFields Reason = "MissingAdmissionFields"
	ReasonAmountExceedsRemaining Reason = "AmountExceedsRemaining"
	ReasonNonPositiveAmount      Reason = "NonPositiveAmount"
	ReasonMalformedPhone         Reason = "MalformedPhone"
	ReasonInvalidMode            Reason = "InvalidMode"
	ReasonInvalidDate            Reason = "InvalidDate"
)

// ValidationError is a rejected intent with a specific reason.
type ValidationError struct {
	Reason  Reason
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("ValidationError:%s: %s (%s)", e.Reason, e.Message, e.Field)
	}
	return fmt.Sprintf("ValidationError:%s: %s", e.Reason, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// STORE ERRORS
// =============================================================================

// StoreUnavailableError is a failed read or append against the record store.
type StoreUnavailableError struct {
	Op  string // e.g. "list payments", "append payment"
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("record store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// storeErr wraps a failed store call. Rows the store could read but not
// parse are inconsistent state, not an outage, and pass through unchanged.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var sErr *StoreUnavailableError
	if errors.As(err, &sErr) || errors.Is(err, ErrInconsistentState) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

// =============================================================================
// INCONSISTENT STATE
// =============================================================================

// InconsistencyKind classifies a finding.
type InconsistencyKind string

const (
	KindDuplicateReceipt     InconsistencyKind = "duplicate_receipt"
	KindReceiptGap           InconsistencyKind = "receipt_gap"
	KindMalformedReceipt     InconsistencyKind = "malformed_receipt"
	KindOrphanPayment        InconsistencyKind = "orphan_payment"
	KindInstallmentSequence  InconsistencyKind = "installment_sequence"
	KindRunningTotalMismatch InconsistencyKind = "running_total_mismatch"
	KindNegativeRemaining    InconsistencyKind = "negative_remaining"
	KindStudentWithoutPay    InconsistencyKind = "student_without_payment"
	KindMalformedRow         InconsistencyKind = "malformed_row"
)

// InconsistentStateError is an anomaly detected in committed rows.
type InconsistentStateError struct {
	Kind     InconsistencyKind
	Ref      string // receipt number or student id
	Detail   string
	Expected string // recomputed value, when there is one
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent state (%s) at %s: %s", e.Kind, e.Ref, e.Detail)
}

func (e *InconsistentStateError) Unwrap() error { return ErrInconsistentState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRetryable returns true if re-running the whole operation from a fresh
// read might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSequenceConflict) || errors.Is(err, ErrStoreUnavailable)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound) || errors.Is(err, ErrPaymentNotFound)
}
