/*
scenarios.go - Demo scenarios for the fee desk

PURPOSE:
  Loads canned ledgers so the frontend can be explored without typing in
  payments. Every scenario wipes the store and then replays its payments
  through the engine's RecordPayment, so receipt numbers, installment
  numbers and running balances are produced by the real code path.

SCENARIOS:
  first-admission   One new student, one payment
  installments      Three installments, the third one rejected
  year-rollover     Receipts restart at 0001 in a new year
  defaulters        Overdue balances and an expired course
  busy-month        Many students, every payment mode

  Loading requires a store implementing ledger.Resetter.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fee-ledger/ledger"
)

var scenarios = []ScenarioDTO{
	{
		ID:          "first-admission",
		Name:        "First Admission",
		Description: "A new student pays the first installment of a 12,000 course",
		Category:    "basics",
	},
	{
		ID:          "installments",
		Name:        "Installments",
		Description: "4,000 then 5,000 against 12,000; a further 4,000 is rejected because only 3,000 remains",
		Category:    "basics",
	},
	{
		ID:          "year-rollover",
		Name:        "Year Rollover",
		Description: "Payments across December and January; the new year's receipts restart at 0001",
		Category:    "receipts",
	},
	{
		ID:          "defaulters",
		Name:        "Defaulters",
		Description: "Students whose next due date has passed, one of them on an expired course",
		Category:    "reports",
	},
	{
		ID:          "busy-month",
		Name:        "Busy Month",
		Description: "Five students paying by Cash, UPI and Bank across one month",
		Category:    "reports",
	},
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario wipes the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	resetter, ok := h.Engine.Store.(ledger.Resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx, h.Engine); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	// Track the loaded scenario
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type scenarioLoader func(ctx context.Context, e *ledger.Engine) error

var scenarioLoaders = map[string]scenarioLoader{
	"first-admission": loadFirstAdmissionScenario,
	"installments":    loadInstallmentsScenario,
	"year-rollover":   loadYearRolloverScenario,
	"defaulters":      loadDefaultersScenario,
	"busy-month":      loadBusyMonthScenario,
}

// demoStudent is the admission data of a scenario student.
type demoStudent struct {
	phone, name, course, batch string
	fees                       int64
	months                     int
}

func (d demoStudent) pay(amount int64, mode ledger.Mode, date string) ledger.PaymentIntent {
	fees := decimal.NewFromInt(d.fees)
	paid, _ := ledger.ParseDate(date)
	return ledger.PaymentIntent{
		Phone:          d.phone,
		Name:           d.name,
		Address:        "Nagpur",
		Course:         d.course,
		Batch:          d.batch,
		TotalFees:      &fees,
		DurationMonths: d.months,
		Amount:         decimal.NewFromInt(amount),
		Mode:           mode,
		PaymentDate:    paid,
	}
}

func record(ctx context.Context, e *ledger.Engine, intents ...ledger.PaymentIntent) error {
	for _, in := range intents {
		if _, err := e.RecordPayment(ctx, in); err != nil {
			return fmt.Errorf("payment of %s by %s: %w", in.Amount, in.Phone, err)
		}
	}
	return nil
}

func loadFirstAdmissionScenario(ctx context.Context, e *ledger.Engine) error {
	s := demoStudent{phone: "9998887776", name: "Asha Kulkarni", course: "Spoken English", batch: "Morning", fees: 12000, months: 6}
	return record(ctx, e, s.pay(4000, ledger.ModeCash, "10-01-2024"))
}

func loadInstallmentsScenario(ctx context.Context, e *ledger.Engine) error {
	s := demoStudent{phone: "9998887776", name: "Asha Kulkarni", course: "Spoken English", batch: "Morning", fees: 12000, months: 6}
	if err := record(ctx, e,
		s.pay(4000, ledger.ModeCash, "10-01-2024"),
		s.pay(5000, ledger.ModeUPI, "12-02-2024"),
	); err != nil {
		return err
	}

	// The overpayment must be refused and leave nothing behind.
	_, err := e.RecordPayment(ctx, s.pay(4000, ledger.ModeCash, "11-03-2024"))
	var vErr *ledger.ValidationError
	if !errors.As(err, &vErr) || vErr.Reason != ledger.ReasonAmountExceedsRemaining {
		return fmt.Errorf("expected the third installment to be rejected, got %v", err)
	}
	return nil
}

func loadYearRolloverScenario(ctx context.Context, e *ledger.Engine) error {
	a := demoStudent{phone: "9876500001", name: "Rohit Deshmukh", course: "Tally Prime", batch: "Evening", fees: 9000, months: 3}
	b := demoStudent{phone: "9876500002", name: "Sneha Patil", course: "Tally Prime", batch: "Evening", fees: 9000, months: 3}
	return record(ctx, e,
		a.pay(3000, ledger.ModeCash, "15-12-2023"),
		b.pay(4500, ledger.ModeUPI, "28-12-2023"),
		a.pay(3000, ledger.ModeCash, "05-01-2024"),
		b.pay(4500, ledger.ModeBank, "09-01-2024"),
		a.pay(3000, ledger.ModeUPI, "06-02-2024"),
	)
}

func loadDefaultersScenario(ctx context.Context, e *ledger.Engine) error {
	now := time.Now()
	ago := func(months int) string {
		return ledger.DateOf(now.AddDate(0, -months, 0)).String()
	}

	overdue := demoStudent{phone: "9822000011", name: "Imran Shaikh", course: "Web Design", batch: "Weekend", fees: 24000, months: 12}
	expired := demoStudent{phone: "9822000012", name: "Kavita Joshi", course: "MS-CIT", batch: "Morning", fees: 6000, months: 3}
	current := demoStudent{phone: "9822000013", name: "Nikhil Wagh", course: "Web Design", batch: "Weekend", fees: 24000, months: 12}

	return record(ctx, e,
		overdue.pay(6000, ledger.ModeCash, ago(4)),
		overdue.pay(6000, ledger.ModeUPI, ago(3)),
		expired.pay(2000, ledger.ModeCash, ago(8)),
		current.pay(12000, ledger.ModeBank, ago(0)),
	)
}

func loadBusyMonthScenario(ctx context.Context, e *ledger.Engine) error {
	students := []demoStudent{
		{phone: "9011100001", name: "Aarti Bhosale", course: "Spoken English", batch: "Morning", fees: 12000, months: 6},
		{phone: "9011100002", name: "Faisal Qureshi", course: "Tally Prime", batch: "Evening", fees: 9000, months: 3},
		{phone: "9011100003", name: "Gauri Pande", course: "Web Design", batch: "Weekend", fees: 24000, months: 12},
		{phone: "9011100004", name: "Harsh Meshram", course: "MS-CIT", batch: "Morning", fees: 6000, months: 3},
		{phone: "9011100005", name: "Juhi Thakre", course: "Spoken English", batch: "Evening", fees: 12000, months: 6},
	}
	modes := ledger.Modes
	var intents []ledger.PaymentIntent
	for i, s := range students {
		intents = append(intents, s.pay(s.fees/2, modes[i%len(modes)], fmt.Sprintf("%02d-03-2024", 2+i)))
	}
	for i, s := range students[:3] {
		intents = append(intents, s.pay(s.fees/4, modes[(i+1)%len(modes)], fmt.Sprintf("%02d-03-2024", 20+i)))
	}
	return record(ctx, e, intents...)
}
