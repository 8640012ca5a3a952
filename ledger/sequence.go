/*
sequence.go - Receipt number allocation

FORMAT:
  <PREFIX>-<YYYY>-<NNNN>, e.g. MA-2024-0001. The counter restarts at 0001 on
  every calendar year and is zero-padded to four digits. Counters above 9999
  keep growing in width rather than wrapping.

ALLOCATION:
  NextReceiptNumber is a pure function of a snapshot: it takes the maximum
  counter among the payments whose Year equals the target year and adds one.
  It performs no I/O, so its result is only as fresh as the snapshot. The
  recorder holds the year lock across snapshot and commit, and re-reads once
  just before committing to catch writers that bypassed the lock.
*/
package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultReceiptPrefix is the institution prefix of every receipt number.
const DefaultReceiptPrefix = "MA"

// ParseReceiptNo splits a receipt number into prefix, year and counter.
func ParseReceiptNo(s string) (prefix string, year, seq int, err error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformedReceiptNo, s)
	}
	n := len(parts)
	prefix = strings.Join(parts[:n-2], "-")
	if prefix == "" || len(parts[n-2]) != 4 || len(parts[n-1]) < 4 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformedReceiptNo, s)
	}
	year, err = strconv.Atoi(parts[n-2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformedReceiptNo, s)
	}
	seq, err = strconv.Atoi(parts[n-1])
	if err != nil || seq < 1 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrMalformedReceiptNo, s)
	}
	return prefix, year, seq, nil
}

// FormatReceiptNo renders a receipt number.
func FormatReceiptNo(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// MaxSequence returns the highest counter among payments of the given year,
// or 0 when there are none. Rows with malformed receipt numbers are skipped;
// the verifier reports them.
func MaxSequence(year int, payments []Payment) int {
	max := 0
	for _, p := range payments {
		if p.Year != year {
			continue
		}
		_, _, seq, err := ParseReceiptNo(p.ReceiptNo)
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max
}

// NextReceiptNumber returns the receipt number following the highest one of
// the given year in the snapshot.
func NextReceiptNumber(prefix string, year int, payments []Payment) string {
	return FormatReceiptNo(prefix, year, MaxSequence(year, payments)+1)
}

// CheckSequenceUnchanged compares the year's counter in the allocation
// snapshot with a fresh read taken just before commit.
func CheckSequenceUnchanged(year int, snapshot, fresh []Payment) error {
	before, after := MaxSequence(year, snapshot), MaxSequence(year, fresh)
	if before != after {
		return fmt.Errorf("%w: year %d moved from %04d to %04d", ErrSequenceConflict, year, before, after)
	}
	return nil
}
