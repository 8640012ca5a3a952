package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
)

// cleanLedger records a small valid history and returns its rows.
func cleanLedger(t *testing.T) ([]ledger.Student, []ledger.Payment) {
	t.Helper()
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, in := range []ledger.PaymentIntent{
		admission("9000000001", "12000", "4000", date(t, "10-01-2024")),
		admission("9000000002", "9000", "3000", date(t, "11-01-2024")),
		installment("9000000001", "5000", ledger.ModeUPI, date(t, "10-02-2024")),
		installment("9000000002", "3000", ledger.ModeBank, date(t, "11-02-2024")),
	} {
		_, err := e.RecordPayment(ctx, in)
		require.NoError(t, err)
	}

	students, payments, err := e.Reader.Snapshot(ctx)
	require.NoError(t, err)
	return students, payments
}

func kinds(rep ledger.VerifyReport) []ledger.InconsistencyKind {
	var out []ledger.InconsistencyKind
	for _, f := range rep.Findings {
		out = append(out, f.Kind)
	}
	return out
}

func TestVerify_CleanLedger(t *testing.T) {
	students, payments := cleanLedger(t)

	rep := ledger.Verify(students, payments)

	assert.True(t, rep.OK())
	assert.NoError(t, rep.Err())
	assert.Equal(t, 2, rep.Students)
	assert.Equal(t, 4, rep.Payments)
}

func TestVerify_DuplicateReceipt(t *testing.T) {
	students, payments := cleanLedger(t)
	payments[3].ReceiptNo = payments[2].ReceiptNo

	rep := ledger.Verify(students, payments)

	assert.Contains(t, kinds(rep), ledger.KindDuplicateReceipt)
	assert.ErrorIs(t, rep.Err(), ledger.ErrInconsistentState)
}

func TestVerify_ReceiptGap(t *testing.T) {
	students, payments := cleanLedger(t)
	// Drop MA-2024-0002 together with its student's history
	var kept []ledger.Payment
	for _, p := range payments {
		if p.ReceiptNo != "MA-2024-0002" {
			kept = append(kept, p)
		}
	}

	rep := ledger.Verify(students, kept)

	require.NotEmpty(t, rep.Findings)
	var gap *ledger.InconsistentStateError
	for _, f := range rep.Findings {
		if f.Kind == ledger.KindReceiptGap {
			gap = f
		}
	}
	require.NotNil(t, gap)
	assert.Equal(t, "MA-2024-0002", gap.Ref)
}

func TestVerify_MalformedAndOrphan(t *testing.T) {
	students, payments := cleanLedger(t)
	payments = append(payments,
		ledger.Payment{ReceiptNo: "MA/2024/5", StudentRef: students[0].ID, Year: 2024},
		ledger.Payment{ReceiptNo: "MA-2024-0005", StudentRef: "STU-ghost", Year: 2024, Amount: dec("1")},
	)

	rep := ledger.Verify(students, payments)

	assert.Contains(t, kinds(rep), ledger.KindMalformedReceipt)
	assert.Contains(t, kinds(rep), ledger.KindOrphanPayment)
}

func TestVerify_RunningTotalsAndInstallments(t *testing.T) {
	students, payments := cleanLedger(t)
	// Second installment of the first student claims the wrong totals
	for i := range payments {
		if payments[i].ReceiptNo == "MA-2024-0003" {
			payments[i].InstallmentNo = 3
			payments[i].RunningTotalPaid = dec("8000")
			payments[i].RunningRemaining = dec("4000")
		}
	}

	rep := ledger.Verify(students, payments)

	found := map[ledger.InconsistencyKind]*ledger.InconsistentStateError{}
	for _, f := range rep.Findings {
		found[f.Kind] = f
	}
	require.Contains(t, found, ledger.KindInstallmentSequence)
	assert.Equal(t, "2", found[ledger.KindInstallmentSequence].Expected)
	require.Contains(t, found, ledger.KindRunningTotalMismatch)
	assert.Equal(t, "MA-2024-0003", found[ledger.KindRunningTotalMismatch].Ref)
}

func TestVerify_NegativeRemainingAndStudentWithoutPayment(t *testing.T) {
	students, payments := cleanLedger(t)
	students = append(students, ledger.Student{ID: "STU-lonely", Phone: "9000000003", TotalFees: dec("100")})
	payments = append(payments, ledger.Payment{
		ReceiptNo:        "MA-2024-0005",
		StudentRef:       students[1].ID,
		Amount:           dec("5000"),
		InstallmentNo:    3,
		RunningTotalPaid: dec("11000"),
		RunningRemaining: dec("-2000"),
		Year:             2024,
	})

	rep := ledger.Verify(students, payments)

	assert.Contains(t, kinds(rep), ledger.KindNegativeRemaining)
	assert.Contains(t, kinds(rep), ledger.KindStudentWithoutPay)
}
