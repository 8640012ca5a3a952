/*
Package sqlite provides a SQLite-backed implementation of ledger.RecordStore.

PURPOSE:
  Persists the two ledger tables, students and payments, with the column
  sets the rest of the institution's tooling expects. Dates are stored as
  DD-MM-YYYY text and money as decimal text, so rows stay readable and
  exportable.

APPEND-ONLY ENFORCEMENT:
  - payments: INSERT only. No UPDATE, no DELETE.
  - students: INSERT, plus UPDATE of the status column only.

  receipt_no carries no UNIQUE constraint on purpose: the store is modeled
  as a plain shared table and the engine owns the receipt invariants (see
  ledger/lock.go). Verify reports any duplicates that slip in from writers
  outside the engine.

ORDERING:
  Each table has an AUTOINCREMENT seq column; reads are ORDER BY seq, which
  is append order.

BOUNDARY VALIDATION:
  Rows are validated on append and again when scanned. A malformed stored
  row fails the read with a ledger.InconsistentStateError (malformed_row)
  instead of reaching the engine.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./fees.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := ledger.NewEngine(store, ledger.NewKeyedMutex())
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/fee-ledger/ledger"
)

// Store implements ledger.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ ledger.RecordStore   = (*Store)(nil)
	_ ledger.Resetter      = (*Store)(nil)
	_ ledger.PaymentGetter = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		parent_phone TEXT,
		address TEXT,
		course TEXT NOT NULL,
		batch TEXT,
		total_fees TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		admission_date TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_id ON students(id);
	CREATE INDEX IF NOT EXISTS idx_students_phone ON students(phone);

	-- Payments (append-only ledger)
	CREATE TABLE IF NOT EXISTS payments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		receipt_no TEXT NOT NULL,
		student_ref TEXT NOT NULL,
		phone TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		mode TEXT NOT NULL,
		installment_no INTEGER NOT NULL,
		running_total_paid TEXT NOT NULL,
		running_remaining TEXT NOT NULL,
		next_due_date TEXT NOT NULL,
		year INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_year ON payments(year);
	CREATE INDEX IF NOT EXISTS idx_payments_student ON payments(student_ref);
	CREATE INDEX IF NOT EXISTS idx_payments_receipt ON payments(receipt_no);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STUDENTS
// =============================================================================

// ListStudents returns every student in append order.
func (s *Store) ListStudents(ctx context.Context) ([]ledger.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, parent_phone, address, course, batch, total_fees,
		       duration_months, start_date, end_date, admission_date, status
		FROM students
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []ledger.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// AppendStudent adds a student row.
func (s *Store) AppendStudent(ctx context.Context, st ledger.Student) error {
	if err := st.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students
		(id, name, phone, parent_phone, address, course, batch, total_fees,
		 duration_months, start_date, end_date, admission_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		st.ID, st.Name, st.Phone,
		nullString(st.ParentPhone), nullString(st.Address),
		st.Course, nullString(st.Batch),
		st.TotalFees.String(),
		st.DurationMonths,
		st.StartDate.String(), st.EndDate.String(), st.AdmissionDate.String(),
		string(st.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to append student: %w", err)
	}
	return nil
}

// UpdateStudentStatus rewrites the status column, the only mutable field.
func (s *Store) UpdateStudentStatus(ctx context.Context, studentID string, status ledger.Status) error {
	if _, err := ledger.ParseStatus(string(status)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE students SET status = ? WHERE id = ?", string(status), studentID)
	if err != nil {
		return fmt.Errorf("failed to update student status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrStudentNotFound, studentID)
	}
	return nil
}

func scanStudent(rows *sql.Rows) (ledger.Student, error) {
	var (
		st                                ledger.Student
		parentPhone, address, batch       sql.NullString
		totalFees, status                 string
		startDate, endDate, admissionDate string
	)

	err := rows.Scan(
		&st.ID, &st.Name, &st.Phone, &parentPhone, &address, &st.Course, &batch,
		&totalFees, &st.DurationMonths, &startDate, &endDate, &admissionDate, &status,
	)
	if err != nil {
		return st, malformedRow("student "+st.ID, "scan: "+err.Error())
	}

	st.ParentPhone = parentPhone.String
	st.Address = address.String
	st.Batch = batch.String
	st.Status = ledger.Status(status)

	p := parser{ref: "student " + st.ID}
	st.TotalFees = p.decimal("total_fees", totalFees)
	st.StartDate = p.date("start_date", startDate)
	st.EndDate = p.date("end_date", endDate)
	st.AdmissionDate = p.date("admission_date", admissionDate)
	if p.err != nil {
		return st, p.err
	}
	if err := st.Validate(); err != nil {
		return st, malformedRow(p.ref, err.Error())
	}
	return st, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// ListPayments returns every payment in append order.
func (s *Store) ListPayments(ctx context.Context) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPayments(ctx, `
		SELECT receipt_no, student_ref, phone, payment_date, amount, mode, installment_no,
		       running_total_paid, running_remaining, next_due_date, year
		FROM payments
		ORDER BY seq ASC
	`)
}

// GetPayment returns the first payment with the given receipt number.
func (s *Store) GetPayment(ctx context.Context, receiptNo string) (ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments, err := s.queryPayments(ctx, `
		SELECT receipt_no, student_ref, phone, payment_date, amount, mode, installment_no,
		       running_total_paid, running_remaining, next_due_date, year
		FROM payments
		WHERE receipt_no = ?
		ORDER BY seq ASC
		LIMIT 1
	`, receiptNo)
	if err != nil {
		return ledger.Payment{}, err
	}
	if len(payments) == 0 {
		return ledger.Payment{}, fmt.Errorf("%w: %s", ledger.ErrPaymentNotFound, receiptNo)
	}
	return payments[0], nil
}

// AppendPayment adds a payment row.
func (s *Store) AppendPayment(ctx context.Context, p ledger.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments
		(receipt_no, student_ref, phone, payment_date, amount, mode, installment_no,
		 running_total_paid, running_remaining, next_due_date, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ReceiptNo, p.StudentRef, p.Phone,
		p.PaymentDate.String(),
		p.Amount.String(),
		string(p.Mode),
		p.InstallmentNo,
		p.RunningTotalPaid.String(),
		p.RunningRemaining.String(),
		p.NextDueDate.String(),
		p.Year,
	)
	if err != nil {
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]ledger.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(rows *sql.Rows) (ledger.Payment, error) {
	var (
		pay                            ledger.Payment
		paymentDate, nextDueDate, mode string
		amount, totalPaid, remaining   string
	)

	err := rows.Scan(
		&pay.ReceiptNo, &pay.StudentRef, &pay.Phone, &paymentDate, &amount, &mode,
		&pay.InstallmentNo, &totalPaid, &remaining, &nextDueDate, &pay.Year,
	)
	if err != nil {
		return pay, malformedRow("payment "+pay.ReceiptNo, "scan: "+err.Error())
	}

	pay.Mode = ledger.Mode(mode)
	p := parser{ref: "payment " + pay.ReceiptNo}
	pay.PaymentDate = p.date("payment_date", paymentDate)
	pay.NextDueDate = p.date("next_due_date", nextDueDate)
	pay.Amount = p.decimal("amount", amount)
	pay.RunningTotalPaid = p.decimal("running_total_paid", totalPaid)
	pay.RunningRemaining = p.decimal("running_remaining", remaining)
	if p.err != nil {
		return pay, p.err
	}
	if err := pay.Validate(); err != nil {
		return pay, malformedRow(p.ref, err.Error())
	}
	return pay, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all rows. Development and demo scenarios only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payments", "students"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// malformedRow reports a stored row the engine cannot use. The cause is
// kept as text only: a bad stored date is not the caller's bad input.
func malformedRow(ref, detail string) error {
	return &ledger.InconsistentStateError{
		Kind:   ledger.KindMalformedRow,
		Ref:    ref,
		Detail: detail,
	}
}

// parser converts stored text columns, keeping the first failure.
type parser struct {
	ref string
	err error
}

func (p *parser) date(col, v string) ledger.Date {
	d, err := ledger.ParseDate(v)
	if err != nil && p.err == nil {
		p.err = malformedRow(p.ref, fmt.Sprintf("column %s: %q is not DD-MM-YYYY", col, v))
	}
	return d
}

func (p *parser) decimal(col, v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil && p.err == nil {
		p.err = malformedRow(p.ref, fmt.Sprintf("column %s: %q is not a decimal", col, v))
	}
	return d
}
