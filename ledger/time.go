package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day used for payments, due dates and course windows
// =============================================================================

// DateLayout is the storage and display layout for every date in the ledger.
const DateLayout = "02-01-2006"

// Date is a calendar day at UTC midnight.
type Date struct {
	Time time.Time
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a DD-MM-YYYY string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, &ValidationError{Reason: ReasonInvalidDate, Message: fmt.Sprintf("date %q is not DD-MM-YYYY", s)}
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) IsZero() bool                  { return d.Time.IsZero() }

// Properties
func (d Date) Year() int          { return d.Time.Year() }
func (d Date) Month() time.Month  { return d.Time.Month() }
func (d Date) Day() int           { return d.Time.Day() }
func (d Date) String() string     { return d.Time.Format(DateLayout) }
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// AddMonths adds n calendar months. A day that does not exist in the target
// month is clamped to that month's last day (31-01 + 1 month = 28-02).
func (d Date) AddMonths(n int) Date {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

// MonthKey returns YYYY-MM, used to bucket collections by month.
func (d Date) MonthKey() string { return d.Time.Format("2006-01") }
