// Package fees resolves which fee applies to a membership kind in a month.
package fees

import (
	"errors"
	"fmt"
	"time"

	"github.com/dues-dev/dues/internal/model"
)

// ErrNoFeeDefined means the schedule has a gap for an active month. It is a
// configuration bug, not a free month: a month without dues needs an
// explicit zero-amount record.
var ErrNoFeeDefined = errors.New("no membership fee defined")

// IntegrityError names the kind and month the schedule failed to cover.
type IntegrityError struct {
	KindID int64
	Month  time.Time
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("could not find a membership fee for month %s and kind of membership %d",
		e.Month.Format("2006-01-02"), e.KindID)
}

func (e *IntegrityError) Unwrap() error { return ErrNoFeeDefined }

// Schedule is the full set of fee records, loaded once per computation.
type Schedule []model.FeeRecord

// Resolve returns the first record for kindID whose range covers month.
// Records are not ranked; overlapping ranges resolve to whichever comes
// first (see Overlaps).
func (s Schedule) Resolve(kindID int64, month time.Time) (model.FeeRecord, error) {
	for _, f := range s {
		if f.KindID == kindID && f.Covers(month) {
			return f, nil
		}
	}
	return model.FeeRecord{}, &IntegrityError{KindID: kindID, Month: month}
}

// Overlap is a pair of records of one kind whose ranges intersect.
type Overlap struct {
	KindID int64
	First  model.FeeRecord
	Second model.FeeRecord
}

func (o Overlap) String() string {
	return fmt.Sprintf("kind %d: %s overlaps %s", o.KindID, describe(o.First), describe(o.Second))
}

// Overlaps reports every pair of records for the same kind whose date
// ranges share at least one day. Resolve silently picks the first of such a
// pair, so a non-empty result means the schedule is ambiguous.
func (s Schedule) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(s); i++ {
		for j := i + 1; j < len(s); j++ {
			a, b := s[i], s[j]
			if a.KindID != b.KindID {
				continue
			}
			if intersects(a, b) {
				out = append(out, Overlap{KindID: a.KindID, First: a, Second: b})
			}
		}
	}
	return out
}

func intersects(a, b model.FeeRecord) bool {
	// a starts after b ends, or b starts after a ends.
	if !b.IsOpen() && a.Start.After(b.End) {
		return false
	}
	if !a.IsOpen() && b.Start.After(a.End) {
		return false
	}
	return true
}

func describe(f model.FeeRecord) string {
	end := "open"
	if !f.IsOpen() {
		end = f.End.Format("2006-01-02")
	}
	return fmt.Sprintf("[%s..%s]=%d", f.Start.Format("2006-01-02"), end, f.Amount)
}
