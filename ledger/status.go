package ledger

import (
	"context"
	"log"
)

// DeriveStatus is Active while today is on or before the course end date.
func DeriveStatus(today Date, s Student) Status {
	if today.BeforeOrEqual(s.EndDate) {
		return StatusActive
	}
	return StatusInactive
}

// WithDerivedStatus returns a copy of students with Status recomputed for
// today. Nothing is written; reports use it to refresh status lazily.
func WithDerivedStatus(today Date, students []Student) []Student {
	out := make([]Student, len(students))
	for i, s := range students {
		s.Status = DeriveStatus(today, s)
		out[i] = s
	}
	return out
}

// SweepResult summarizes one status sweep.
type SweepResult struct {
	Checked     int
	Activated   int
	Deactivated int
	Failed      int
}

// Changed is the number of rows rewritten.
func (r SweepResult) Changed() int { return r.Activated + r.Deactivated }

// Sweeper recomputes every student's status and writes the ones that
// changed. Re-running it on the same day is a no-op.
type Sweeper struct {
	Store  RecordStore
	Reader *Reader
}

// NewSweeper creates a sweeper over store.
func NewSweeper(store RecordStore) *Sweeper {
	return &Sweeper{Store: store, Reader: NewReader(store)}
}

// Sweep runs one pass for the given day. A failed update is logged and
// counted; the sweep carries on with the remaining students and returns the
// first error.
func (sw *Sweeper) Sweep(ctx context.Context, today Date) (SweepResult, error) {
	students, err := retryRead(ctx, sw.Reader, "list students", sw.Store.ListStudents)
	if err != nil {
		return SweepResult{}, err
	}

	var (
		res      SweepResult
		firstErr error
	)
	for _, s := range students {
		res.Checked++
		status := DeriveStatus(today, s)
		if status == s.Status {
			continue
		}
		if err := sw.Store.UpdateStudentStatus(ctx, s.ID, status); err != nil {
			log.Printf("[Sweep] Failed to set %s to %s: %v", s.ID, status, err)
			res.Failed++
			if firstErr == nil {
				firstErr = storeErr("update student status", err)
			}
			continue
		}
		if status == StatusActive {
			res.Activated++
		} else {
			res.Deactivated++
		}
	}
	return res, firstErr
}
