/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

FORMATS:
  - Dates are DD-MM-YYYY, the format printed on receipts
  - Money is a decimal string ("12000.00"), never a JSON float

TYPES:
  Payments:  RecordPaymentRequest, PaymentDTO, ReceiptResponse
  Students:  StudentDTO, StudentStateDTO
  Reports:   DashboardDTO, MonthTotalDTO, BalanceDTO
  Admin:     SweepResultDTO, VerifyReportDTO, FindingDTO
  Auth:      LoginRequest, LoginResponse
  Scenarios: ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - receipt/receipt.go: Field labels in ReceiptResponse
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/receipt"
	"github.com/warp/fee-ledger/report"
)

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPaymentRequest is the body of POST /api/payments. The admission
// fields are only read when the phone has never paid before.
type RecordPaymentRequest struct {
	Phone string `json:"phone"`

	Name           string           `json:"name,omitempty"`
	ParentPhone    string           `json:"parent_phone,omitempty"`
	Address        string           `json:"address,omitempty"`
	Course         string           `json:"course,omitempty"`
	Batch          string           `json:"batch,omitempty"`
	TotalFees      *decimal.Decimal `json:"total_fees,omitempty"`
	DurationMonths int              `json:"duration_months,omitempty"`

	Amount      decimal.Decimal `json:"amount"`
	Mode        string          `json:"mode"`
	PaymentDate string          `json:"payment_date,omitempty"`  // DD-MM-YYYY, default today
	NextDueDate string          `json:"next_due_date,omitempty"` // DD-MM-YYYY, default +1 month
}

// toIntent parses the request into a payment intent.
func (req RecordPaymentRequest) toIntent() (ledger.PaymentIntent, error) {
	in := ledger.PaymentIntent{
		Phone:          req.Phone,
		Name:           req.Name,
		ParentPhone:    req.ParentPhone,
		Address:        req.Address,
		Course:         req.Course,
		Batch:          req.Batch,
		TotalFees:      req.TotalFees,
		DurationMonths: req.DurationMonths,
		Amount:         req.Amount,
	}

	mode, err := ledger.ParseMode(req.Mode)
	if err != nil {
		return in, err
	}
	in.Mode = mode

	if req.PaymentDate != "" {
		if in.PaymentDate, err = ledger.ParseDate(req.PaymentDate); err != nil {
			return in, err
		}
	}
	if req.NextDueDate != "" {
		if in.NextDueDate, err = ledger.ParseDate(req.NextDueDate); err != nil {
			return in, err
		}
	}
	return in, nil
}

// PaymentDTO represents a payment row in API responses.
type PaymentDTO struct {
	ReceiptNo        string          `json:"receipt_no"`
	StudentID        string          `json:"student_id"`
	Phone            string          `json:"phone"`
	PaymentDate      string          `json:"payment_date"`
	Amount           decimal.Decimal `json:"amount"`
	Mode             ledger.Mode     `json:"mode"`
	InstallmentNo    int             `json:"installment_no"`
	RunningTotalPaid decimal.Decimal `json:"running_total_paid"`
	RunningRemaining decimal.Decimal `json:"running_remaining"`
	NextDueDate      string          `json:"next_due_date"`
	Year             int             `json:"year"`
}

// ReceiptResponse is returned after a payment is recorded or looked up.
type ReceiptResponse struct {
	ReceiptNo   string          `json:"receipt_no"`
	NewStudent  bool            `json:"new_student"`
	Student     StudentDTO      `json:"student"`
	Payment     PaymentDTO      `json:"payment"`
	Fields      []receipt.Field `json:"fields"`
	PDFURL      string          `json:"pdf_url"`
	WhatsAppURL string          `json:"whatsapp_url"`
	Message     string          `json:"message"`
}

// =============================================================================
// STUDENTS
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	ParentPhone    string          `json:"parent_phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	Course         string          `json:"course"`
	Batch          string          `json:"batch,omitempty"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	DurationMonths int             `json:"duration_months"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	AdmissionDate  string          `json:"admission_date"`
	Status         ledger.Status   `json:"status"`
}

// StudentStateDTO is the current ledger of one student.
type StudentStateDTO struct {
	Exists            bool            `json:"exists"`
	Student           *StudentDTO     `json:"student,omitempty"`
	Payments          []PaymentDTO    `json:"payments"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Remaining         decimal.Decimal `json:"remaining"`
	NextInstallmentNo int             `json:"next_installment_no"`
}

// =============================================================================
// REPORTS
// =============================================================================

// DashboardDTO is the dashboard response.
type DashboardDTO struct {
	AsOf           string                     `json:"as_of"`
	Students       int                        `json:"students"`
	Active         int                        `json:"active"`
	Inactive       int                        `json:"inactive"`
	TotalFees      decimal.Decimal            `json:"total_fees"`
	TotalCollected decimal.Decimal            `json:"total_collected"`
	TotalPending   decimal.Decimal            `json:"total_pending"`
	Monthly        []MonthTotalDTO            `json:"monthly"`
	ByMode         map[string]decimal.Decimal `json:"by_mode"`
	Defaulters     []BalanceDTO               `json:"defaulters"`
}

type MonthTotalDTO struct {
	Month    string          `json:"month"`
	Total    decimal.Decimal `json:"total"`
	Payments int             `json:"payments"`
}

type BalanceDTO struct {
	StudentID string          `json:"student_id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Remaining decimal.Decimal `json:"remaining"`
	DueDate   string          `json:"due_date"`
}

// =============================================================================
// ADMIN
// =============================================================================

type SweepResultDTO struct {
	AsOf        string `json:"as_of"`
	Checked     int    `json:"checked"`
	Activated   int    `json:"activated"`
	Deactivated int    `json:"deactivated"`
	Failed      int    `json:"failed"`
}

type VerifyReportDTO struct {
	OK       bool         `json:"ok"`
	Students int          `json:"students"`
	Payments int          `json:"payments"`
	Findings []FindingDTO `json:"findings"`
}

type FindingDTO struct {
	Kind     string `json:"kind"`
	Ref      string `json:"ref"`
	Detail   string `json:"detail"`
	Expected string `json:"expected,omitempty"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every error reply. Reason is set for
// validation failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStudentDTO(s ledger.Student) StudentDTO {
	return StudentDTO{
		ID:             s.ID,
		Name:           s.Name,
		Phone:          s.Phone,
		ParentPhone:    s.ParentPhone,
		Address:        s.Address,
		Course:         s.Course,
		Batch:          s.Batch,
		TotalFees:      s.TotalFees,
		DurationMonths: s.DurationMonths,
		StartDate:      s.StartDate.String(),
		EndDate:        s.EndDate.String(),
		AdmissionDate:  s.AdmissionDate.String(),
		Status:         s.Status,
	}
}

func toPaymentDTO(p ledger.Payment) PaymentDTO {
	return PaymentDTO{
		ReceiptNo:        p.ReceiptNo,
		StudentID:        p.StudentRef,
		Phone:            p.Phone,
		PaymentDate:      p.PaymentDate.String(),
		Amount:           p.Amount,
		Mode:             p.Mode,
		InstallmentNo:    p.InstallmentNo,
		RunningTotalPaid: p.RunningTotalPaid,
		RunningRemaining: p.RunningRemaining,
		NextDueDate:      p.NextDueDate.String(),
		Year:             p.Year,
	}
}

func toPaymentDTOs(payments []ledger.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toStateDTO(st ledger.State) StudentStateDTO {
	dto := StudentStateDTO{
		Exists:            st.Exists(),
		Payments:          toPaymentDTOs(st.Payments),
		TotalPaid:         st.TotalPaid,
		Remaining:         st.Remaining,
		NextInstallmentNo: st.NextInstallmentNo,
	}
	if st.Student != nil {
		s := toStudentDTO(*st.Student)
		dto.Student = &s
	}
	return dto
}

func toDashboardDTO(d report.Dashboard) DashboardDTO {
	dto := DashboardDTO{
		AsOf:           d.AsOf.String(),
		Students:       d.Students,
		Active:         d.Active,
		Inactive:       d.Inactive,
		TotalFees:      d.TotalFees,
		TotalCollected: d.TotalCollected,
		TotalPending:   d.TotalPending,
		Monthly:        make([]MonthTotalDTO, len(d.Monthly)),
		ByMode:         make(map[string]decimal.Decimal, len(d.ByMode)),
		Defaulters:     make([]BalanceDTO, len(d.Defaulters)),
	}
	for i, m := range d.Monthly {
		dto.Monthly[i] = MonthTotalDTO{Month: m.Month, Total: m.Total, Payments: m.Payments}
	}
	for mode, total := range d.ByMode {
		dto.ByMode[string(mode)] = total
	}
	for i, b := range d.Defaulters {
		dto.Defaulters[i] = BalanceDTO{
			StudentID: b.StudentID,
			Name:      b.Name,
			Phone:     b.Phone,
			Remaining: b.Remaining,
			DueDate:   b.DueDate.String(),
		}
	}
	return dto
}

func toVerifyDTO(rep ledger.VerifyReport) VerifyReportDTO {
	dto := VerifyReportDTO{
		OK:       rep.OK(),
		Students: rep.Students,
		Payments: rep.Payments,
		Findings: make([]FindingDTO, len(rep.Findings)),
	}
	for i, f := range rep.Findings {
		dto.Findings[i] = FindingDTO{Kind: string(f.Kind), Ref: f.Ref, Detail: f.Detail, Expected: f.Expected}
	}
	return dto
}
