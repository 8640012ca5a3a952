/*
handlers.go - HTTP API handlers for the fee ledger

PURPOSE:
  Exposes the fee ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and its collaborators
  (receipt renderer, notifier, report builder).

ENDPOINTS:
  Payments:
    POST   /api/payments                       Record a payment (admits new students)
    GET    /api/payments                       List payments (?year=, ?phone=)
    GET    /api/payments/{receiptNo}           Receipt fields and links
    GET    /api/payments/{receiptNo}/pdf       Receipt PDF
    GET    /api/payments/{receiptNo}/whatsapp  WhatsApp message and link

  Students:
    GET    /api/students                       List students (status derived for today)
    GET    /api/students/lookup?phone=         Current ledger state of a phone
    GET    /api/students/{id}/payments         Payments of one student

  Reports:
    GET    /api/dashboard                      Collection dashboard

  Admin:
    POST   /api/admin/status-sweep             Recompute Active/Inactive now
    GET    /api/admin/verify                   Consistency check of both tables

  Auth:
    POST   /api/auth/login                     Office password -> bearer token

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (reason carries the ledger.Reason)
  - 401: Missing or invalid token
  - 404: Student or payment not found
  - 409: Receipt sequence moved under us, safe to retry
  - 500: Inconsistent stored state, internal errors
  - 503: Record store unavailable, safe to retry

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/notify"
	"github.com/warp/fee-ledger/receipt"
	"github.com/warp/fee-ledger/report"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *ledger.Engine
	Renderer receipt.Renderer
	Notifier *notify.Notifier
	Auth     *Auth // nil disables the password gate

	// Now returns the business day. Replaced in tests.
	Now func() ledger.Date

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over engine.
func NewHandler(engine *ledger.Engine, renderer receipt.Renderer, notifier *notify.Notifier) *Handler {
	return &Handler{
		Engine:   engine,
		Renderer: renderer,
		Notifier: notifier,
		Now:      ledger.Today,
	}
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records one payment and returns its receipt.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	intent, err := req.toIntent()
	if err != nil {
		writeLedgerError(w, "Invalid payment", err)
		return
	}

	rec, err := h.Engine.RecordPayment(r.Context(), intent)
	if err != nil {
		writeLedgerError(w, "Failed to record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.receiptResponse(rec.Student, rec.Payment, rec.NewStudent))
}

// ListPayments returns payments in append order, optionally filtered by
// receipt year or phone.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Engine.Reader.Payments(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list payments", err)
		return
	}

	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
	}
	phone := h.Engine.NormalizePhone(r.URL.Query().Get("phone"))

	filtered := make([]ledger.Payment, 0, len(payments))
	for _, p := range payments {
		if year != 0 && p.Year != year {
			continue
		}
		if phone != "" && p.Phone != phone {
			continue
		}
		filtered = append(filtered, p)
	}

	writeJSON(w, http.StatusOK, toPaymentDTOs(filtered))
}

// GetPayment returns the receipt of one payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	s, p, err := h.Engine.FindPayment(r.Context(), chi.URLParam(r, "receiptNo"))
	if err != nil {
		writeLedgerError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, h.receiptResponse(s, p, false))
}

// GetReceiptPDF renders the receipt document.
func (h *Handler) GetReceiptPDF(w http.ResponseWriter, r *http.Request) {
	s, p, err := h.Engine.FindPayment(r.Context(), chi.URLParam(r, "receiptNo"))
	if err != nil {
		writeLedgerError(w, "Failed to get payment", err)
		return
	}

	doc, err := h.Renderer.Render(ledger.NewReceiptData(s, p))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render receipt", err)
		return
	}

	w.Header().Set("Content-Type", h.Renderer.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+receipt.FileName(p.ReceiptNo)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		log.Printf("[API] Failed to write receipt %s: %v", p.ReceiptNo, err)
	}
}

// GetWhatsAppLink returns the confirmation message and its click-to-chat
// link. With ?redirect=1 it redirects straight to WhatsApp.
func (h *Handler) GetWhatsAppLink(w http.ResponseWriter, r *http.Request) {
	s, p, err := h.Engine.FindPayment(r.Context(), chi.URLParam(r, "receiptNo"))
	if err != nil {
		writeLedgerError(w, "Failed to get payment", err)
		return
	}

	link := h.Notifier.Link(s, p)
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, link, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":     link,
		"message": h.Notifier.ComposeMessage(s, p),
	})
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students with status derived for today.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, _, err := h.Engine.Reader.Snapshot(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to list students", err)
		return
	}

	derived := ledger.WithDerivedStatus(h.Now(), students)
	dtos := make([]StudentDTO, len(derived))
	for i, s := range derived {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LookupStudent returns the current ledger state of a phone. An unseen
// phone is not an error: the response says exists=false and the client
// shows the admission form.
func (h *Handler) LookupStudent(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "phone query parameter is required", nil)
		return
	}

	st, err := h.Engine.CurrentState(r.Context(), phone)
	if err != nil {
		writeLedgerError(w, "Failed to look up student", err)
		return
	}
	writeJSON(w, http.StatusOK, toStateDTO(st))
}

// GetStudentPayments returns the ledger of one student by id.
func (h *Handler) GetStudentPayments(w http.ResponseWriter, r *http.Request) {
	st, err := h.Engine.Reader.StudentState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, "Failed to get student", err)
		return
	}
	writeJSON(w, http.StatusOK, toStateDTO(st))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetDashboard returns collection totals.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	students, payments, err := h.Engine.Reader.Snapshot(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(report.Build(h.Now(), students, payments)))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerStatusSweep recomputes every student's status for today.
func (h *Handler) TriggerStatusSweep(w http.ResponseWriter, r *http.Request) {
	today := h.Now()
	res, err := h.Engine.Sweep(r.Context(), today)
	if err != nil {
		writeLedgerError(w, "Status sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResultDTO{
		AsOf:        today.String(),
		Checked:     res.Checked,
		Activated:   res.Activated,
		Deactivated: res.Deactivated,
		Failed:      res.Failed,
	})
}

// VerifyLedger checks both tables against the ledger invariants. Findings
// are data, not errors: the response is 200 with ok=false.
func (h *Handler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Engine.Verify(r.Context())
	if err != nil {
		writeLedgerError(w, "Failed to verify ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyDTO(rep))
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login exchanges the office password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Auth == nil {
		writeError(w, http.StatusNotFound, "Authentication is disabled", nil)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, exp, err := h.Auth.Login(req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp.UTC().Format(time.RFC3339)})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) receiptResponse(s ledger.Student, p ledger.Payment, newStudent bool) ReceiptResponse {
	return ReceiptResponse{
		ReceiptNo:   p.ReceiptNo,
		NewStudent:  newStudent,
		Student:     toStudentDTO(s),
		Payment:     toPaymentDTO(p),
		Fields:      receipt.Fields(ledger.NewReceiptData(s, p)),
		PDFURL:      "/api/payments/" + url.PathEscape(p.ReceiptNo) + "/pdf",
		WhatsAppURL: h.Notifier.Link(s, p),
		Message:     h.Notifier.ComposeMessage(s, p),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps engine errors to HTTP statuses.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	var vErr *ledger.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Reason:  string(vErr.Reason),
			Field:   vErr.Field,
			Details: vErr.Message,
		})
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrSequenceConflict):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, message, err)
	case errors.Is(err, ledger.ErrInconsistentState):
		log.Printf("[API] %s: %v", message, err)
		writeError(w, http.StatusInternalServerError, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
