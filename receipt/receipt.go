/*
Package receipt renders ledger.ReceiptData for people.

PURPOSE:
  The engine hands back typed receipt data; this package owns every display
  concern: the fixed label order, rupee formatting with Indian digit
  grouping, the amount in words and the PDF document.

FIELDS (in order):
  Receipt No, Student Name, Student ID, Phone, Course, Installment No,
  Payment Date, Payment Mode, Total Fees, Paid Now, Amount in Words,
  Total Paid, Remaining, Next Due Date

SEE ALSO:
  - pdf.go: PDF renderer
  - words.go: amount in words
*/
package receipt

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/fee-ledger/ledger"
)

// Field is one labelled display value.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Labels
const (
	LabelReceiptNo     = "Receipt No"
	LabelStudentName   = "Student Name"
	LabelStudentID     = "Student ID"
	LabelPhone         = "Phone"
	LabelCourse        = "Course"
	LabelInstallmentNo = "Installment No"
	LabelPaymentDate   = "Payment Date"
	LabelMode          = "Payment Mode"
	LabelTotalFees     = "Total Fees"
	LabelPaidNow       = "Paid Now"
	LabelAmountInWords = "Amount in Words"
	LabelTotalPaid     = "Total Paid"
	LabelRemaining     = "Remaining"
	LabelNextDueDate   = "Next Due Date"
)

// Fields flattens receipt data into labelled display strings.
func Fields(d ledger.ReceiptData) []Field {
	return []Field{
		{LabelReceiptNo, d.ReceiptNo},
		{LabelStudentName, d.StudentName},
		{LabelStudentID, d.StudentID},
		{LabelPhone, d.Phone},
		{LabelCourse, d.Course},
		{LabelInstallmentNo, strconv.Itoa(d.InstallmentNo)},
		{LabelPaymentDate, d.PaymentDate.String()},
		{LabelMode, string(d.Mode)},
		{LabelTotalFees, FormatRupees(d.TotalFees)},
		{LabelPaidNow, FormatRupees(d.PaidNow)},
		{LabelAmountInWords, AmountInWords(d.PaidNow)},
		{LabelTotalPaid, FormatRupees(d.TotalPaid)},
		{LabelRemaining, FormatRupees(d.Remaining)},
		{LabelNextDueDate, d.NextDueDate.String()},
	}
}

// FieldMap is Fields keyed by label.
func FieldMap(d ledger.ReceiptData) map[string]string {
	m := make(map[string]string)
	for _, f := range Fields(d) {
		m[f.Label] = f.Value
	}
	return m
}

// FormatRupees formats an amount as ₹12,34,567.50.
func FormatRupees(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	s := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	return sign + "₹" + groupIndian(whole) + "." + frac
}

// groupIndian inserts separators after the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return strings.Join(groups, ",") + "," + tail
}
