package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var jan15 = ledger.NewDate(2024, time.January, 15)

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	e := ledger.NewEngine(mem, ledger.NewKeyedMutex())
	e.Recorder.Now = func() ledger.Date { return jan15 }
	e.Reader.RetryDelay = time.Millisecond
	return e, mem
}

func date(t *testing.T, s string) ledger.Date {
	t.Helper()
	d, err := ledger.ParseDate(s)
	require.NoError(t, err)
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// admission is a complete first-payment intent.
func admission(phone, fees, amount string, paid ledger.Date) ledger.PaymentIntent {
	return ledger.PaymentIntent{
		Phone:          phone,
		Name:           "Asha Kulkarni",
		ParentPhone:    "9822012345",
		Address:        "Dharampeth, Nagpur",
		Course:         "Spoken English",
		Batch:          "Morning",
		TotalFees:      decPtr(fees),
		DurationMonths: 6,
		Amount:         dec(amount),
		Mode:           ledger.ModeCash,
		PaymentDate:    paid,
	}
}

// installment is a follow-up payment carrying only the phone.
func installment(phone, amount string, mode ledger.Mode, paid ledger.Date) ledger.PaymentIntent {
	return ledger.PaymentIntent{
		Phone:       phone,
		Amount:      dec(amount),
		Mode:        mode,
		PaymentDate: paid,
	}
}
