/*
recorder.go - Payment Recorder, the orchestrator of the engine

PURPOSE:
  Turns a payment intent into committed rows: validates the intent against
  the current ledger, assigns the installment and receipt numbers, appends
  the student (first payment only) and the payment, and returns the data
  the renderer and notifier need.

FLOW:
  1. Shape checks (phone, mode, amount > 0, dates). No I/O, no locks.
  2. Lock student:<phone>, then receipt:<year>.
  3. Snapshot both tables; build the student's state.
  4. New phone: validate admission fields, derive course dates.
     Known phone: total fees come from the stored row, the intent's value
     is ignored.
  5. Reject amount > remaining.
  6. Allocate installment_no and receipt_no, compute running totals.
  7. Re-read payments; reject if the year's counter or the student's
     installment count moved (a writer bypassed the lock).
  8. Append student (if new), then payment. From here on the caller's
     cancellation is ignored.

FAILURE MODES:
  - Everything before step 8 is side-effect free.
  - A failed append is returned as StoreUnavailableError and NOT retried.
    The caller must re-run RecordPayment, which re-reads the store.
  - Student appended but payment failed: the retry finds the student by
    phone and takes the existing-student branch, so admission is never
    duplicated.
*/
package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// PaymentIntent is what a caller asks the engine to record.
// Admission fields are only read when the phone is unseen.
type PaymentIntent struct {
	Phone string

	// Admission fields
	Name           string
	ParentPhone    string
	Address        string
	Course         string
	Batch          string
	TotalFees      *decimal.Decimal
	DurationMonths int

	Amount      decimal.Decimal
	Mode        Mode
	PaymentDate Date // zero means today
	NextDueDate Date // zero means PaymentDate + 1 month
}

type admission struct {
	Name           string `validate:"required"`
	Course         string `validate:"required"`
	DurationMonths int    `validate:"min=1,max=120"`
	ParentPhone    string `validate:"omitempty,number,min=10,max=15"`
}

// Recorder records payments.
type Recorder struct {
	Store  RecordStore
	Reader *Reader
	Locker Locker

	// Prefix is the institution prefix of receipt numbers.
	Prefix string
	// CountryCode is the home dialling code folded out of phone keys.
	CountryCode string
	// Now returns the current day. Replaced in tests.
	Now func() Date
}

// NewRecorder creates a recorder with the default receipt prefix.
func NewRecorder(store RecordStore, locker Locker) *Recorder {
	return &Recorder{
		Store:       store,
		Reader:      NewReader(store),
		Locker:      locker,
		Prefix:      DefaultReceiptPrefix,
		CountryCode: DefaultCountryCode,
		Now:         Today,
	}
}

// RecordPayment validates and commits one payment.
func (r *Recorder) RecordPayment(ctx context.Context, in PaymentIntent) (*Receipt, error) {
	in, err := r.normalize(in)
	if err != nil {
		return nil, err
	}
	year := in.PaymentDate.Year()

	unlockStudent, err := r.Locker.Lock(ctx, StudentLockKey(in.Phone))
	if err != nil {
		return nil, fmt.Errorf("lock student %s: %w", in.Phone, err)
	}
	defer unlockStudent()

	unlockYear, err := r.Locker.Lock(ctx, ReceiptLockKey(year))
	if err != nil {
		return nil, fmt.Errorf("lock receipts %d: %w", year, err)
	}
	defer unlockYear()

	students, payments, err := r.Reader.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	state := BuildState(FindByPhone(students, in.Phone), payments)

	student, isNew, err := r.resolveStudent(state, in)
	if err != nil {
		return nil, err
	}
	remaining := student.TotalFees.Sub(state.TotalPaid)

	if in.Amount.GreaterThan(remaining) {
		return nil, &ValidationError{
			Reason:  ReasonAmountExceedsRemaining,
			Field:   "amount",
			Message: fmt.Sprintf("payment %s exceeds remaining fees %s", in.Amount.StringFixed(2), remaining.StringFixed(2)),
		}
	}

	payment := Payment{
		ReceiptNo:        NextReceiptNumber(r.Prefix, year, payments),
		StudentRef:       student.ID,
		Phone:            student.Phone,
		PaymentDate:      in.PaymentDate,
		Amount:           in.Amount,
		Mode:             in.Mode,
		InstallmentNo:    state.NextInstallmentNo,
		RunningTotalPaid: state.TotalPaid.Add(in.Amount),
		RunningRemaining: remaining.Sub(in.Amount),
		NextDueDate:      in.NextDueDate,
		Year:             year,
	}

	// Last point at which the caller may walk away.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.checkUnchanged(ctx, year, student.ID, payments); err != nil {
		log.Printf("[Recorder] Rejected %s for %s: %v", payment.ReceiptNo, student.Phone, err)
		return nil, err
	}

	commitCtx := context.WithoutCancel(ctx)
	if isNew {
		if err := r.Store.AppendStudent(commitCtx, student); err != nil {
			return nil, storeErr("append student", err)
		}
		log.Printf("[Recorder] Admitted %s (%s) to %s until %s", student.ID, student.Phone, student.Course, student.EndDate)
	}
	if err := r.Store.AppendPayment(commitCtx, payment); err != nil {
		if isNew {
			log.Printf("[Recorder] Student %s committed without payment %s: %v", student.ID, payment.ReceiptNo, err)
		}
		return nil, storeErr("append payment", err)
	}

	log.Printf("[Recorder] %s: student=%s installment=%d amount=%s remaining=%s",
		payment.ReceiptNo, student.ID, payment.InstallmentNo, payment.Amount.StringFixed(2), payment.RunningRemaining.StringFixed(2))

	return &Receipt{
		Student:    student,
		Payment:    payment,
		NewStudent: isNew,
		Data:       NewReceiptData(student, payment),
	}, nil
}

// normalize applies defaults and the checks that need no ledger state.
func (r *Recorder) normalize(in PaymentIntent) (PaymentIntent, error) {
	in.Phone = NormalizePhone(r.CountryCode, in.Phone)
	if err := validate.Var(in.Phone, "required,number,min=10,max=15"); err != nil {
		return in, &ValidationError{Reason: ReasonMalformedPhone, Field: "phone", Message: "phone must be 10 to 15 digits"}
	}
	if !in.Amount.IsPositive() {
		return in, &ValidationError{Reason: ReasonNonPositiveAmount, Field: "amount", Message: fmt.Sprintf("amount must be positive, got %s", in.Amount)}
	}
	mode, err := ParseMode(string(in.Mode))
	if err != nil {
		return in, err
	}
	in.Mode = mode

	if in.PaymentDate.IsZero() {
		in.PaymentDate = r.Now()
	}
	if in.NextDueDate.IsZero() {
		in.NextDueDate = in.PaymentDate.AddMonths(1)
	}
	if in.NextDueDate.Before(in.PaymentDate) {
		return in, &ValidationError{Reason: ReasonInvalidDate, Field: "next_due_date", Message: "next due date is before the payment date"}
	}
	return in, nil
}

// resolveStudent returns the stored student, or builds the new one from the
// intent's admission fields.
func (r *Recorder) resolveStudent(state State, in PaymentIntent) (Student, bool, error) {
	if state.Exists() {
		return *state.Student, false, nil
	}

	in.ParentPhone = NormalizePhone(r.CountryCode, in.ParentPhone)
	var missing []string
	if err := validate.Struct(admission{
		Name:           strings.TrimSpace(in.Name),
		Course:         strings.TrimSpace(in.Course),
		DurationMonths: in.DurationMonths,
		ParentPhone:    in.ParentPhone,
	}); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				missing = append(missing, fieldName(fe.Field()))
			}
		} else {
			return Student{}, false, err
		}
	}
	if in.TotalFees == nil || in.TotalFees.IsNegative() {
		missing = append(missing, "total_fees")
	}
	if len(missing) > 0 {
		return Student{}, false, &ValidationError{
			Reason:  ReasonMissingAdmissionFields,
			Field:   strings.Join(missing, ","),
			Message: "new student requires name, course, duration_months and total_fees",
		}
	}

	start := in.PaymentDate
	s := Student{
		ID:             NewStudentID(),
		Name:           strings.TrimSpace(in.Name),
		Phone:          in.Phone,
		ParentPhone:    in.ParentPhone,
		Address:        strings.TrimSpace(in.Address),
		Course:         strings.TrimSpace(in.Course),
		Batch:          strings.TrimSpace(in.Batch),
		TotalFees:      *in.TotalFees,
		DurationMonths: in.DurationMonths,
		StartDate:      start,
		EndDate:        start.AddMonths(in.DurationMonths),
		AdmissionDate:  start,
	}
	s.Status = DeriveStatus(r.Now(), s)
	return s, true, nil
}

// checkUnchanged re-reads payments and fails if the year's receipt counter
// or the student's installment count moved since the snapshot.
func (r *Recorder) checkUnchanged(ctx context.Context, year int, studentID string, snapshot []Payment) error {
	fresh, err := r.Reader.Payments(ctx)
	if err != nil {
		return err
	}
	if err := CheckSequenceUnchanged(year, snapshot, fresh); err != nil {
		return err
	}
	if before, after := len(PaymentsOf(studentID, snapshot)), len(PaymentsOf(studentID, fresh)); before != after {
		return fmt.Errorf("%w: student %s installments moved from %d to %d", ErrSequenceConflict, studentID, before, after)
	}
	return nil
}

// DefaultCountryCode is the home dialling code (India).
const DefaultCountryCode = "91"

// localPhoneDigits is the length of a home number without its country code.
const localPhoneDigits = 10

// NormalizePhone strips spaces, dashes and a leading plus sign. A leading
// countryCode on a number longer than a home number is dropped, so
// "+91 99988 87776" and "9998887776" are the same key.
func NormalizePhone(countryCode, phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if countryCode != "" && len(phone) == len(countryCode)+localPhoneDigits && strings.HasPrefix(phone, countryCode) {
		return phone[len(countryCode):]
	}
	return phone
}

func fieldName(f string) string {
	switch f {
	case "DurationMonths":
		return "duration_months"
	case "ParentPhone":
		return "parent_phone"
	default:
		return strings.ToLower(f)
	}
}
