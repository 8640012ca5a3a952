/*
scenarios_test.go - Tests for demo scenario loading

Every scenario replays its payments through the engine, so a loaded
scenario must pass the consistency check.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListScenarios(t *testing.T) {
	router := NewRouter(newSQLiteHandler(t), nil)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarioLoaders))
	for _, s := range list {
		assert.Contains(t, scenarioLoaders, s.ID, "scenario %s has no loader", s.ID)
	}
}

func TestLoadScenario_AllVerify(t *testing.T) {
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			// GIVEN: A fresh store
			router := NewRouter(newSQLiteHandler(t), nil)

			// WHEN: The scenario is loaded
			rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: s.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			// THEN: The ledger is consistent and the scenario is current
			rep := decode[VerifyReportDTO](t, do(t, router, http.MethodGet, "/api/admin/verify", nil))
			assert.True(t, rep.OK, "findings: %+v", rep.Findings)
			assert.NotZero(t, rep.Payments)

			current := decode[map[string]ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", nil))
			assert.Equal(t, s.ID, current["scenario"].ID)
		})
	}
}

func TestLoadScenario_ReplacesPreviousData(t *testing.T) {
	router := NewRouter(newSQLiteHandler(t), nil)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "busy-month"}).Code)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "first-admission"}).Code)

	payments := decode[[]PaymentDTO](t, do(t, router, http.MethodGet, "/api/payments", nil))
	require.Len(t, payments, 1)
	assert.Equal(t, "MA-2024-0001", payments[0].ReceiptNo)
}

func TestLoadScenario_Installments(t *testing.T) {
	router := NewRouter(newSQLiteHandler(t), nil)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "installments"}).Code)

	st := decode[StudentStateDTO](t, do(t, router, http.MethodGet, "/api/students/lookup?phone=9998887776", nil))
	require.Len(t, st.Payments, 2, "the overpayment leaves no row")
	assert.Equal(t, "3000", st.Remaining.String())
	assert.Equal(t, 3, st.NextInstallmentNo)
}

func TestLoadScenario_YearRollover(t *testing.T) {
	router := NewRouter(newSQLiteHandler(t), nil)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "year-rollover"}).Code)

	var got []string
	for _, p := range decode[[]PaymentDTO](t, do(t, router, http.MethodGet, "/api/payments", nil)) {
		got = append(got, p.ReceiptNo)
	}
	assert.Equal(t, []string{
		"MA-2023-0001", "MA-2023-0002",
		"MA-2024-0001", "MA-2024-0002", "MA-2024-0003",
	}, got)
}

func TestLoadScenario_Errors(t *testing.T) {
	router := NewRouter(newSQLiteHandler(t), nil)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	current := decode[map[string]*ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", nil))
	assert.Nil(t, current["scenario"])
}
