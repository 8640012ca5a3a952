package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testStudent(id, phone string) ledger.Student {
	return ledger.Student{
		ID:             id,
		Name:           "Asha Kulkarni",
		Phone:          phone,
		Course:         "Spoken English",
		TotalFees:      decimal.RequireFromString("12000"),
		DurationMonths: 6,
		StartDate:      ledger.NewDate(2024, time.January, 10),
		EndDate:        ledger.NewDate(2024, time.July, 10),
		AdmissionDate:  ledger.NewDate(2024, time.January, 10),
		Status:         ledger.StatusActive,
	}
}

func testPayment(receiptNo, studentID string, installment int, amount, paid, remaining string) ledger.Payment {
	return ledger.Payment{
		ReceiptNo:        receiptNo,
		StudentRef:       studentID,
		Phone:            "9998887776",
		PaymentDate:      ledger.NewDate(2024, time.January, 10),
		Amount:           decimal.RequireFromString(amount),
		Mode:             ledger.ModeUPI,
		InstallmentNo:    installment,
		RunningTotalPaid: decimal.RequireFromString(paid),
		RunningRemaining: decimal.RequireFromString(remaining),
		NextDueDate:      ledger.NewDate(2024, time.February, 10),
		Year:             2024,
	}
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestStore_StudentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := testStudent("STU-1", "9998887776")
	s.ParentPhone = "9822012345"
	s.Address = "Dharampeth, Nagpur"
	s.Batch = "Morning"
	require.NoError(t, store.AppendStudent(ctx, s))

	students, err := store.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)

	got := students[0]
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.Phone, got.Phone)
	assert.Equal(t, s.ParentPhone, got.ParentPhone)
	assert.Equal(t, s.Address, got.Address)
	assert.Equal(t, s.Batch, got.Batch)
	assert.True(t, s.TotalFees.Equal(got.TotalFees))
	assert.Equal(t, s.StartDate, got.StartDate)
	assert.Equal(t, s.EndDate, got.EndDate)
	assert.Equal(t, s.AdmissionDate, got.AdmissionDate)
	assert.Equal(t, ledger.StatusActive, got.Status)
}

func TestStore_PaymentsKeepAppendOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendStudent(ctx, testStudent("STU-1", "9998887776")))
	require.NoError(t, store.AppendPayment(ctx, testPayment("MA-2024-0002", "STU-1", 1, "4000.50", "4000.50", "7999.50")))
	require.NoError(t, store.AppendPayment(ctx, testPayment("MA-2024-0001", "STU-1", 2, "1000", "5000.50", "6999.50")))

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "MA-2024-0002", payments[0].ReceiptNo)
	assert.Equal(t, "MA-2024-0001", payments[1].ReceiptNo)
	assert.True(t, decimal.RequireFromString("4000.50").Equal(payments[0].Amount))
	assert.Equal(t, ledger.ModeUPI, payments[0].Mode)
	assert.Equal(t, ledger.NewDate(2024, time.February, 10), payments[0].NextDueDate)
}

func TestStore_DuplicateReceiptIsNotRejected(t *testing.T) {
	// The table has no unique constraint; Verify is what catches this.
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendPayment(ctx, testPayment("MA-2024-0001", "STU-1", 1, "100", "100", "0")))
	require.NoError(t, store.AppendPayment(ctx, testPayment("MA-2024-0001", "STU-2", 1, "100", "100", "0")))

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestStore_AppendValidatesRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bad := testPayment("MA-2024-0001", "STU-1", 1, "100", "100", "0")
	bad.Amount = decimal.Zero
	assert.Error(t, store.AppendPayment(ctx, bad))

	badStudent := testStudent("", "9998887776")
	assert.Error(t, store.AppendStudent(ctx, badStudent))
}

func TestStore_GetPayment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendPayment(ctx, testPayment("MA-2024-0001", "STU-1", 1, "100", "100", "0")))

	p, err := store.GetPayment(ctx, "MA-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, "STU-1", p.StudentRef)

	_, err = store.GetPayment(ctx, "MA-2024-0099")
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
}

func TestStore_MalformedRowIsInconsistentState(t *testing.T) {
	// GIVEN: A student row whose end_date was rewritten outside the engine
	path := filepath.Join(t.TempDir(), "fees.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.AppendStudent(ctx, testStudent("STU-1", "9998887776")))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec("UPDATE students SET end_date = '2024/02/01' WHERE id = 'STU-1'")
	require.NoError(t, err)

	// WHEN: The table is read
	_, err = store.ListStudents(ctx)

	// THEN: The failure is inconsistent state, neither client input nor an outage
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInconsistentState)
	assert.False(t, ledger.IsClientError(err))
	assert.False(t, ledger.IsRetryable(err))
	var iErr *ledger.InconsistentStateError
	require.ErrorAs(t, err, &iErr)
	assert.Equal(t, ledger.KindMalformedRow, iErr.Kind)
	assert.Equal(t, "student STU-1", iErr.Ref)
	assert.Contains(t, iErr.Detail, "end_date")

	// WHEN: A valid payment for an unrelated new student is recorded
	engine := ledger.NewEngine(store, ledger.NewKeyedMutex())
	engine.Reader.RetryDelay = time.Millisecond
	_, err = engine.RecordPayment(ctx, ledger.PaymentIntent{
		Phone:          "9876500001",
		Name:           "Rohit Deshmukh",
		Course:         "Tally Prime",
		TotalFees:      decimalPtr("9000"),
		DurationMonths: 3,
		Amount:         decimal.RequireFromString("3000"),
		Mode:           ledger.ModeCash,
		PaymentDate:    ledger.NewDate(2024, time.January, 10),
	})

	// THEN: It is refused as inconsistent state, not as a validation failure
	assert.ErrorIs(t, err, ledger.ErrInconsistentState)
	assert.False(t, ledger.IsClientError(err))
	assert.False(t, ledger.IsRetryable(err))
}

func TestStore_MalformedPaymentAmount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fees.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.AppendPayment(ctx, testPayment("MA-2024-0001", "STU-1", 1, "100", "100", "0")))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec("UPDATE payments SET amount = 'lots' WHERE receipt_no = 'MA-2024-0001'")
	require.NoError(t, err)

	_, err = store.GetPayment(ctx, "MA-2024-0001")
	var iErr *ledger.InconsistentStateError
	require.ErrorAs(t, err, &iErr)
	assert.Equal(t, ledger.KindMalformedRow, iErr.Kind)
	assert.Equal(t, "payment MA-2024-0001", iErr.Ref)
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestStore_UpdateStudentStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendStudent(ctx, testStudent("STU-1", "9998887776")))
	require.NoError(t, store.UpdateStudentStatus(ctx, "STU-1", ledger.StatusInactive))

	students, err := store.ListStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusInactive, students[0].Status)

	err = store.UpdateStudentStatus(ctx, "STU-missing", ledger.StatusInactive)
	assert.ErrorIs(t, err, ledger.ErrStudentNotFound)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendStudent(ctx, testStudent("STU-1", "9998887776")))
	require.NoError(t, store.AppendPayment(ctx, testPayment("MA-2024-0001", "STU-1", 1, "100", "100", "0")))
	require.NoError(t, store.Reset(ctx))

	students, err := store.ListStudents(ctx)
	require.NoError(t, err)
	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, students)
	assert.Empty(t, payments)
}

// =============================================================================
// ENGINE OVER SQLITE
// =============================================================================

func TestStore_EngineSurvivesReopen(t *testing.T) {
	// GIVEN: Payments recorded through the engine into a file database
	// WHEN: The database is reopened
	// THEN: The receipt sequence and balances continue where they stopped
	path := filepath.Join(t.TempDir(), "fees.db")
	ctx := context.Background()
	fees := decimal.RequireFromString("12000")
	paid := ledger.NewDate(2024, time.January, 10)

	store, err := sqlite.New(path)
	require.NoError(t, err)
	engine := ledger.NewEngine(store, ledger.NewKeyedMutex())
	_, err = engine.RecordPayment(ctx, ledger.PaymentIntent{
		Phone: "9998887776", Name: "Asha Kulkarni", Course: "Spoken English",
		TotalFees: &fees, DurationMonths: 6,
		Amount: decimal.RequireFromString("4000"), Mode: ledger.ModeCash, PaymentDate: paid,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	engine = ledger.NewEngine(store, ledger.NewKeyedMutex())

	rec, err := engine.RecordPayment(ctx, ledger.PaymentIntent{
		Phone: "9998887776", Amount: decimal.RequireFromString("5000"), Mode: ledger.ModeUPI, PaymentDate: paid.AddDays(30),
	})
	require.NoError(t, err)
	assert.Equal(t, "MA-2024-0002", rec.Payment.ReceiptNo)
	assert.Equal(t, 2, rec.Payment.InstallmentNo)
	assert.True(t, decimal.RequireFromString("3000").Equal(rec.Payment.RunningRemaining))

	rep, err := engine.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, rep.OK(), "findings: %v", rep.Err())
}
