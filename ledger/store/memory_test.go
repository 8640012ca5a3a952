package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/ledger/store"
)

func TestMemory_FailNextFiresOnce(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	m.FailNext(store.OpListPayments, boom)

	_, err := m.ListPayments(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = m.ListPayments(ctx)
	assert.NoError(t, err)
}

func TestMemory_OnListPaymentsCountsCalls(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	var calls []int
	m.OnListPayments(func(call int) { calls = append(calls, call) })
	for i := 0; i < 3; i++ {
		_, err := m.ListPayments(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestMemory_ListReturnsCopies(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	s := ledger.Student{
		ID: "STU-1", Name: "A", Phone: "9998887776", DurationMonths: 1,
		StartDate: ledger.Today(), EndDate: ledger.Today().AddMonths(1), Status: ledger.StatusActive,
	}
	require.NoError(t, m.AppendStudent(ctx, s))

	students, err := m.ListStudents(ctx)
	require.NoError(t, err)
	students[0].Name = "changed"

	again, err := m.ListStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", again[0].Name)
}

func TestMemory_UpdateStatusUnknownStudent(t *testing.T) {
	m := store.NewMemory()
	err := m.UpdateStudentStatus(context.Background(), "STU-x", ledger.StatusInactive)
	assert.ErrorIs(t, err, ledger.ErrStudentNotFound)
}
