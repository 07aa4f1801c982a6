// Package period expands membership periods into the calendar months they
// are billed for, and answers activity questions over sets of periods.
package period

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/monthkey"
)

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths moves t forward n calendar months. The day of month is clamped
// to the length of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(first time.Time) int {
	return first.AddDate(0, 1, -1).Day()
}

// EffectiveEnd is the period's end, capped at today.
func EffectiveEnd(p model.MembershipPeriod, today time.Time) time.Time {
	today = Day(today)
	if p.IsOpen() || !p.End.Before(today) {
		return today
	}
	return Day(p.End)
}

// Months returns the billing dates of a period: begin, begin+1 month, ...
// for as long as they fall strictly before the effective end. Each date is
// derived from begin directly, so clamped days do not drift.
func Months(p model.MembershipPeriod, today time.Time) []time.Time {
	begin := Day(p.Begin)
	end := EffectiveEnd(p, today)

	var months []time.Time
	for k := 0; ; k++ {
		m := AddMonths(begin, k)
		if !m.Before(end) {
			break
		}
		months = append(months, m)
	}
	return months
}

// DurationInMonths counts the calendar months a period touches up to today,
// both ends inclusive. Zero-fee months count too.
func DurationInMonths(p model.MembershipPeriod, today time.Time) int {
	today = Day(today)
	end := today
	if !p.IsOpen() && !p.End.After(today) {
		end = Day(p.End)
	}
	if end.Before(Day(p.Begin)) {
		return 0
	}
	return monthkey.Index(end) - monthkey.Index(p.Begin) + 1
}

// ActiveOn reports whether day lies within the period.
func ActiveOn(p model.MembershipPeriod, day time.Time) bool {
	day = Day(day)
	return !Day(p.Begin).After(day) && (p.IsOpen() || !Day(p.End).Before(day))
}

// ActiveMembers returns the distinct members with a period covering day,
// in the order they first appear.
func ActiveMembers(periods []model.MembershipPeriod, day time.Time) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, p := range periods {
		if !ActiveOn(p, day) || seen[p.MemberID] {
			continue
		}
		seen[p.MemberID] = true
		ids = append(ids, p.MemberID)
	}
	return ids
}

// ActiveMonthsByKind sums, per membership kind name, the calendar months of
// all periods that began on or before until, counting each period up to
// until or its end, whichever comes first.
func ActiveMonthsByKind(periods []model.MembershipPeriod, kindNames map[int64]string, until time.Time) map[string]int {
	until = Day(until)
	res := make(map[string]int)
	for _, p := range periods {
		if Day(p.Begin).After(until) {
			continue
		}
		end := until
		if !p.IsOpen() && p.End.Before(until) {
			end = Day(p.End)
		}
		name, ok := kindNames[p.KindID]
		if !ok {
			name = fmt.Sprintf("kind %d", p.KindID)
		}
		res[name] += monthkey.Index(end) - monthkey.Index(p.Begin) + 1
	}
	return res
}
