/*
Package report builds read-side dashboards from ledger snapshots.

It never writes. Status is derived for the report date rather than read
from the stored column, so a dashboard is correct even when the last
status sweep is stale.
*/
package report

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/fee-ledger/ledger"
)

// Dashboard aggregates the whole ledger.
type Dashboard struct {
	AsOf           ledger.Date
	Students       int
	Active         int
	Inactive       int
	TotalFees      decimal.Decimal
	TotalCollected decimal.Decimal
	TotalPending   decimal.Decimal
	Monthly        []MonthTotal
	ByMode         map[ledger.Mode]decimal.Decimal
	Defaulters     []Balance // students with a balance whose last due date has passed
}

// MonthTotal is the collection of one calendar month.
type MonthTotal struct {
	Month    string // YYYY-MM
	Total    decimal.Decimal
	Payments int
}

// Balance is one student's outstanding amount.
type Balance struct {
	StudentID string
	Name      string
	Phone     string
	Remaining decimal.Decimal
	DueDate   ledger.Date
}

// Build computes the dashboard for the given day.
func Build(today ledger.Date, students []ledger.Student, payments []ledger.Payment) Dashboard {
	d := Dashboard{
		AsOf:           today,
		TotalFees:      decimal.Zero,
		TotalCollected: decimal.Zero,
		TotalPending:   decimal.Zero,
		ByMode:         make(map[ledger.Mode]decimal.Decimal),
	}

	months := make(map[string]*MonthTotal)
	for _, p := range payments {
		d.TotalCollected = d.TotalCollected.Add(p.Amount)
		d.ByMode[p.Mode] = d.ByMode[p.Mode].Add(p.Amount)

		key := p.PaymentDate.MonthKey()
		m, ok := months[key]
		if !ok {
			m = &MonthTotal{Month: key, Total: decimal.Zero}
			months[key] = m
		}
		m.Total = m.Total.Add(p.Amount)
		m.Payments++
	}
	for _, m := range months {
		d.Monthly = append(d.Monthly, *m)
	}
	sort.Slice(d.Monthly, func(i, j int) bool { return d.Monthly[i].Month < d.Monthly[j].Month })

	for _, s := range ledger.WithDerivedStatus(today, students) {
		d.Students++
		if s.Status == ledger.StatusActive {
			d.Active++
		} else {
			d.Inactive++
		}
		d.TotalFees = d.TotalFees.Add(s.TotalFees)

		st := ledger.BuildState(&s, payments)
		if st.Remaining.IsPositive() {
			d.TotalPending = d.TotalPending.Add(st.Remaining)
			if n := len(st.Payments); n > 0 && st.Payments[n-1].NextDueDate.Before(today) {
				d.Defaulters = append(d.Defaulters, Balance{
					StudentID: s.ID,
					Name:      s.Name,
					Phone:     s.Phone,
					Remaining: st.Remaining,
					DueDate:   st.Payments[n-1].NextDueDate,
				})
			}
		}
	}
	return d
}
