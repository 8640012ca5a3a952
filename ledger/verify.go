/*
verify.go - Consistency check over the raw ledger

PURPOSE:
  Running totals are denormalized onto every payment row at write time.
  Verify recomputes everything from raw rows and reports where the stored
  ledger disagrees. It never rewrites history: findings are surfaced for
  manual reconciliation, each with the recomputed value when one exists.

CHECKS:
  Receipts:  malformed numbers, year column vs receipt year, duplicates,
             gaps in 0001..N per year
  Students:  orphan payments, installment numbers != 1..K,
             running_total_paid / running_remaining != recomputed,
             negative remaining, admitted students with no payment
*/
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// VerifyReport is the outcome of Verify.
type VerifyReport struct {
	Students int
	Payments int
	Findings []*InconsistentStateError
}

// OK reports whether no finding was raised.
func (r VerifyReport) OK() bool { return len(r.Findings) == 0 }

// Err joins every finding, or returns nil.
func (r VerifyReport) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Findings))
	for i, f := range r.Findings {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Verify recomputes the ledger from raw rows.
func Verify(students []Student, payments []Payment) VerifyReport {
	rep := VerifyReport{Students: len(students), Payments: len(payments)}
	add := func(kind InconsistencyKind, ref, expected, format string, args ...any) {
		rep.Findings = append(rep.Findings, &InconsistentStateError{
			Kind:     kind,
			Ref:      ref,
			Detail:   fmt.Sprintf(format, args...),
			Expected: expected,
		})
	}

	verifyReceipts(payments, add)

	known := make(map[string]bool, len(students))
	for _, s := range students {
		known[s.ID] = true
	}
	for _, p := range payments {
		if !known[p.StudentRef] {
			add(KindOrphanPayment, p.ReceiptNo, "", "references unknown student %s", p.StudentRef)
		}
	}

	seen := make(map[string]bool, len(students))
	for _, s := range students {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		verifyStudent(s, PaymentsOf(s.ID, payments), add)
	}
	return rep
}

type findingFunc func(kind InconsistencyKind, ref, expected, format string, args ...any)

func verifyReceipts(payments []Payment, add findingFunc) {
	count := make(map[string]int)
	byYear := make(map[int][]int)
	prefixes := make(map[int]string)
	for _, p := range payments {
		prefix, year, seq, err := ParseReceiptNo(p.ReceiptNo)
		if err != nil {
			add(KindMalformedReceipt, p.ReceiptNo, "", "%v", err)
			continue
		}
		if year != p.Year {
			add(KindMalformedReceipt, p.ReceiptNo, fmt.Sprint(year), "year column %d does not match receipt year %d", p.Year, year)
		}
		count[p.ReceiptNo]++
		if count[p.ReceiptNo] == 2 {
			add(KindDuplicateReceipt, p.ReceiptNo, "", "receipt number issued more than once")
		}
		byYear[year] = append(byYear[year], seq)
		if _, ok := prefixes[year]; !ok {
			prefixes[year] = prefix
		}
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		seqs := byYear[y]
		sort.Ints(seqs)
		want := 1
		for _, seq := range seqs {
			if seq < want {
				continue // duplicate, reported above
			}
			for ; want < seq; want++ {
				ref := FormatReceiptNo(prefixes[y], y, want)
				add(KindReceiptGap, ref, "", "year %d has no receipt %04d", y, want)
			}
			want = seq + 1
		}
	}
}

func verifyStudent(s Student, payments []Payment, add findingFunc) {
	if len(payments) == 0 {
		add(KindStudentWithoutPay, s.ID, "", "student %s was admitted but has no payment", s.Phone)
		return
	}
	paid := decimal.Zero
	for i, p := range payments {
		paid = paid.Add(p.Amount)
		remaining := s.TotalFees.Sub(paid)

		if p.InstallmentNo != i+1 {
			add(KindInstallmentSequence, p.ReceiptNo, fmt.Sprint(i+1), "installment %d stored, %d expected for %s", p.InstallmentNo, i+1, s.ID)
		}
		if !p.RunningTotalPaid.Equal(paid) {
			add(KindRunningTotalMismatch, p.ReceiptNo, paid.StringFixed(2), "running total paid %s, recomputed %s", p.RunningTotalPaid.StringFixed(2), paid.StringFixed(2))
		}
		if !p.RunningRemaining.Equal(remaining) {
			add(KindRunningTotalMismatch, p.ReceiptNo, remaining.StringFixed(2), "running remaining %s, recomputed %s", p.RunningRemaining.StringFixed(2), remaining.StringFixed(2))
		}
		if remaining.IsNegative() {
			add(KindNegativeRemaining, p.ReceiptNo, "", "payments exceed total fees of %s by %s", s.ID, remaining.Neg().StringFixed(2))
		}
	}
}
