package report_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/report"
)

func d(year int, month time.Month, day int) ledger.Date { return ledger.NewDate(year, month, day) }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuild(t *testing.T) {
	// GIVEN: One student paid off, one with an overdue balance on an
	//        expired course
	students := []ledger.Student{
		{ID: "STU-1", Name: "Asha", Phone: "9000000001", TotalFees: money("12000"), EndDate: d(2024, time.July, 10), Status: ledger.StatusActive},
		{ID: "STU-2", Name: "Ravi", Phone: "9000000002", TotalFees: money("9000"), EndDate: d(2024, time.April, 11), Status: ledger.StatusActive},
	}
	payments := []ledger.Payment{
		{ReceiptNo: "MA-2024-0001", StudentRef: "STU-1", PaymentDate: d(2024, time.January, 10), Amount: money("4000"), Mode: ledger.ModeCash, NextDueDate: d(2024, time.February, 10)},
		{ReceiptNo: "MA-2024-0002", StudentRef: "STU-2", PaymentDate: d(2024, time.January, 11), Amount: money("3000"), Mode: ledger.ModeUPI, NextDueDate: d(2024, time.February, 11)},
		{ReceiptNo: "MA-2024-0003", StudentRef: "STU-1", PaymentDate: d(2024, time.February, 9), Amount: money("8000"), Mode: ledger.ModeUPI, NextDueDate: d(2024, time.March, 9)},
	}

	// WHEN: Building the dashboard in May
	dash := report.Build(d(2024, time.May, 1), students, payments)

	// THEN
	assert.Equal(t, 2, dash.Students)
	assert.Equal(t, 1, dash.Active)
	assert.Equal(t, 1, dash.Inactive, "status is derived, not read from the row")
	assert.True(t, money("21000").Equal(dash.TotalFees))
	assert.True(t, money("15000").Equal(dash.TotalCollected))
	assert.True(t, money("6000").Equal(dash.TotalPending))

	require.Len(t, dash.Monthly, 2)
	assert.Equal(t, "2024-01", dash.Monthly[0].Month)
	assert.True(t, money("7000").Equal(dash.Monthly[0].Total))
	assert.Equal(t, 2, dash.Monthly[0].Payments)
	assert.Equal(t, "2024-02", dash.Monthly[1].Month)
	assert.True(t, money("8000").Equal(dash.Monthly[1].Total))

	assert.True(t, money("4000").Equal(dash.ByMode[ledger.ModeCash]))
	assert.True(t, money("11000").Equal(dash.ByMode[ledger.ModeUPI]))

	require.Len(t, dash.Defaulters, 1)
	assert.Equal(t, "STU-2", dash.Defaulters[0].StudentID)
	assert.True(t, money("6000").Equal(dash.Defaulters[0].Remaining))
	assert.Equal(t, d(2024, time.February, 11), dash.Defaulters[0].DueDate)
}

func TestBuild_Empty(t *testing.T) {
	dash := report.Build(d(2024, time.May, 1), nil, nil)

	assert.Zero(t, dash.Students)
	assert.True(t, dash.TotalCollected.IsZero())
	assert.True(t, dash.TotalPending.IsZero())
	assert.Empty(t, dash.Monthly)
	assert.Empty(t, dash.Defaulters)
}
