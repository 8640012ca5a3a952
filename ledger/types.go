/*
Package ledger provides the fee ledger engine.

PURPOSE:
  Tracks installment-based tuition payments for students enrolled in
  courses. The engine allocates per-year receipt numbers, computes running
  balances, assigns installment numbers and derives each student's
  Active/Inactive status from the course end date.

KEY CONCEPTS IN THIS FILE (types.go):
  - Student: created once on first payment, immutable except Status
  - Payment: immutable ledger row with write-time running totals
  - Mode / Status: closed enumerations
  - ReceiptData: everything the renderer and notifier need

DESIGN PRINCIPLES:
  1. Append-only: Payment rows are never updated or deleted
  2. Precision: money is decimal.Decimal, never float64
  3. Identity: students are referenced by engine-assigned ID, never by phone
  4. Boundary validation: rows are validated when they cross the store adapter

SEE ALSO:
  - store.go: RecordStore contract
  - recorder.go: Payment Recorder (the orchestrator)
  - reader.go: Ledger Reader
*/
package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Mode is how a payment was made.
type Mode string

const (
	ModeCash Mode = "Cash"
	ModeUPI  Mode = "UPI"
	ModeBank Mode = "Bank"
)

// Modes lists every accepted payment mode in display order.
var Modes = []Mode{ModeCash, ModeUPI, ModeBank}

// ParseMode accepts any casing of a known mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", &ValidationError{Reason: ReasonInvalidMode, Field: "mode", Message: fmt.Sprintf("unknown payment mode %q", s)}
}

// Status is the derived enrollment status of a student.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// ParseStatus parses a stored status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusInactive:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// =============================================================================
// STUDENT
// =============================================================================

// Student is created exactly once, on the first payment for an unseen phone.
// Every field except Status is immutable after creation.
type Student struct {
	ID             string
	Name           string
	Phone          string
	ParentPhone    string
	Address        string
	Course         string
	Batch          string
	TotalFees      decimal.Decimal
	DurationMonths int
	StartDate      Date
	EndDate        Date
	AdmissionDate  Date
	Status         Status
}

// NewStudentID returns a fresh opaque student identifier.
func NewStudentID() string {
	return "STU-" + uuid.NewString()
}

// Validate checks the invariants a stored student row must satisfy.
func (s Student) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("student: missing id")
	case s.Name == "":
		return fmt.Errorf("student %s: missing name", s.ID)
	case s.Phone == "":
		return fmt.Errorf("student %s: missing phone", s.ID)
	case s.TotalFees.IsNegative():
		return fmt.Errorf("student %s: negative total fees %s", s.ID, s.TotalFees)
	case s.DurationMonths < 1:
		return fmt.Errorf("student %s: duration must be at least one month", s.ID)
	case s.StartDate.IsZero() || s.EndDate.IsZero():
		return fmt.Errorf("student %s: missing course dates", s.ID)
	case s.EndDate.Before(s.StartDate):
		return fmt.Errorf("student %s: end date %s before start date %s", s.ID, s.EndDate, s.StartDate)
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return fmt.Errorf("student %s: %w", s.ID, err)
	}
	return nil
}

// =============================================================================
// PAYMENT
// =============================================================================

// Payment is one installment. RunningTotalPaid and RunningRemaining are
// snapshots taken at write time and are never recomputed in place.
type Payment struct {
	ReceiptNo        string
	StudentRef       string
	Phone            string
	PaymentDate      Date
	Amount           decimal.Decimal
	Mode             Mode
	InstallmentNo    int
	RunningTotalPaid decimal.Decimal
	RunningRemaining decimal.Decimal
	NextDueDate      Date
	Year             int
}

// Validate checks the invariants a stored payment row must satisfy.
func (p Payment) Validate() error {
	switch {
	case p.ReceiptNo == "":
		return fmt.Errorf("payment: missing receipt number")
	case p.StudentRef == "":
		return fmt.Errorf("payment %s: missing student reference", p.ReceiptNo)
	case !p.Amount.IsPositive():
		return fmt.Errorf("payment %s: amount must be positive, got %s", p.ReceiptNo, p.Amount)
	case p.InstallmentNo < 1:
		return fmt.Errorf("payment %s: installment number must be positive", p.ReceiptNo)
	case p.RunningRemaining.IsNegative():
		return fmt.Errorf("payment %s: negative remaining balance %s", p.ReceiptNo, p.RunningRemaining)
	case p.PaymentDate.IsZero():
		return fmt.Errorf("payment %s: missing payment date", p.ReceiptNo)
	case p.Year == 0:
		return fmt.Errorf("payment %s: missing year", p.ReceiptNo)
	}
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return fmt.Errorf("payment %s: %w", p.ReceiptNo, err)
	}
	if _, _, _, err := ParseReceiptNo(p.ReceiptNo); err != nil {
		return fmt.Errorf("payment %s: %w", p.ReceiptNo, err)
	}
	return nil
}

// =============================================================================
// RECEIPT
// =============================================================================

// ReceiptData carries every value the renderer and notifier collaborators
// need. Display formatting (currency, amount in words) is theirs.
type ReceiptData struct {
	ReceiptNo     string
	StudentID     string
	StudentName   string
	Phone         string
	Course        string
	InstallmentNo int
	PaymentDate   Date
	Mode          Mode
	TotalFees     decimal.Decimal
	PaidNow       decimal.Decimal
	TotalPaid     decimal.Decimal
	Remaining     decimal.Decimal
	NextDueDate   Date
}

// Receipt is the result of a successful RecordPayment.
type Receipt struct {
	Student    Student
	Payment    Payment
	NewStudent bool
	Data       ReceiptData
}

// NewReceiptData assembles receipt data from committed rows.
func NewReceiptData(s Student, p Payment) ReceiptData {
	return ReceiptData{
		ReceiptNo:     p.ReceiptNo,
		StudentID:     s.ID,
		StudentName:   s.Name,
		Phone:         s.Phone,
		Course:        s.Course,
		InstallmentNo: p.InstallmentNo,
		PaymentDate:   p.PaymentDate,
		Mode:          p.Mode,
		TotalFees:     s.TotalFees,
		PaidNow:       p.Amount,
		TotalPaid:     p.RunningTotalPaid,
		Remaining:     p.RunningRemaining,
		NextDueDate:   p.NextDueDate,
	}
}
