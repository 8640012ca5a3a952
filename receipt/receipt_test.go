package receipt_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/receipt"
)

func sampleData() ledger.ReceiptData {
	return ledger.ReceiptData{
		ReceiptNo:     "MA-2024-0001",
		StudentID:     "STU-1",
		StudentName:   "Asha Kulkarni",
		Phone:         "9998887776",
		Course:        "Spoken English",
		InstallmentNo: 1,
		PaymentDate:   ledger.NewDate(2024, time.January, 10),
		Mode:          ledger.ModeCash,
		TotalFees:     decimal.RequireFromString("12000"),
		PaidNow:       decimal.RequireFromString("4000"),
		TotalPaid:     decimal.RequireFromString("4000"),
		Remaining:     decimal.RequireFromString("8000"),
		NextDueDate:   ledger.NewDate(2024, time.February, 10),
	}
}

func TestAmountInWords(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "Rupees Zero Only"},
		{"4000", "Rupees Four Thousand Only"},
		{"12000", "Rupees Twelve Thousand Only"},
		{"21", "Rupees Twenty-One Only"},
		{"105", "Rupees One Hundred Five Only"},
		{"99999", "Rupees Ninety-Nine Thousand Nine Hundred Ninety-Nine Only"},
		{"100000", "Rupees One Lakh Only"},
		{"1250000.50", "Rupees Twelve Lakh Fifty Thousand and Fifty Paise Only"},
		{"25000000", "Rupees Two Crore Fifty Lakh Only"},
		{"0.75", "Rupees Zero and Seventy-Five Paise Only"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, receipt.AmountInWords(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestFormatRupees(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "₹0.00"},
		{"999", "₹999.00"},
		{"12000", "₹12,000.00"},
		{"1234567.5", "₹12,34,567.50"},
		{"100000", "₹1,00,000.00"},
		{"-3000", "-₹3,000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, receipt.FormatRupees(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestFields_FixedOrder(t *testing.T) {
	fields := receipt.Fields(sampleData())

	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.Label
	}
	assert.Equal(t, []string{
		"Receipt No", "Student Name", "Student ID", "Phone", "Course", "Installment No",
		"Payment Date", "Payment Mode", "Total Fees", "Paid Now", "Amount in Words",
		"Total Paid", "Remaining", "Next Due Date",
	}, labels)

	m := receipt.FieldMap(sampleData())
	assert.Equal(t, "MA-2024-0001", m[receipt.LabelReceiptNo])
	assert.Equal(t, "10-01-2024", m[receipt.LabelPaymentDate])
	assert.Equal(t, "₹12,000.00", m[receipt.LabelTotalFees])
	assert.Equal(t, "Rupees Four Thousand Only", m[receipt.LabelAmountInWords])
	assert.Equal(t, "₹8,000.00", m[receipt.LabelRemaining])
	assert.Equal(t, "10-02-2024", m[receipt.LabelNextDueDate])
	assert.Equal(t, "1", m[receipt.LabelInstallmentNo])
}

func TestPDFRenderer(t *testing.T) {
	r := receipt.NewPDFRenderer("Murlidhar Academy")

	doc, err := r.Render(sampleData())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
	assert.Equal(t, "application/pdf", r.ContentType())
	assert.Equal(t, "MA-2024-0001.pdf", receipt.FileName("MA-2024-0001"))
}
