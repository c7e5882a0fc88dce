package retention

import (
	"fmt"
	"time"
)

// Granularity is a calendar timescale used to bucket and window records.
type Granularity int

const (
	Days Granularity = iota
	Weeks
	Months
	Years
)

// granularities is the evaluation order. Finer granularities go first so a
// record kept for its day is not re-judged for its week, month or year.
var granularities = [...]Granularity{Days, Weeks, Months, Years}

func (g Granularity) String() string {
	switch g {
	case Days:
		return "days"
	case Weeks:
		return "weeks"
	case Months:
		return "months"
	case Years:
		return "years"
	}
	return fmt.Sprintf("granularity(%d)", int(g))
}

// ordinalOfUnixEpoch is the proleptic Gregorian ordinal of 1970-01-01,
// counting 0001-01-01 as day 1.
const ordinalOfUnixEpoch = 719163

// dayOrdinal returns the proleptic Gregorian ordinal of t's UTC date.
func dayOrdinal(t time.Time) int {
	y, m, d := t.UTC().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix()/86400) + ordinalOfUnixEpoch
}

// bucketKey returns the bucket t falls in for g.
//
// Months are keyed by month of year only, so the same month in different
// years shares one bucket. Existing retention histories depend on this
// grouping; widening it to year+month changes which backups survive.
func bucketKey(g Granularity, t time.Time) int {
	switch g {
	case Days:
		return dayOrdinal(t)
	case Weeks:
		return dayOrdinal(t) / 7
	case Months:
		return int(t.UTC().Month())
	case Years:
		return t.UTC().Year()
	}
	panic(fmt.Sprintf("retention: unknown granularity %d", int(g)))
}

// windowStart returns now minus n units of g. Month and year arithmetic
// is calendar-aware and clamps to the last day of the target month.
func windowStart(g Granularity, n int, now time.Time) time.Time {
	switch g {
	case Days:
		return now.AddDate(0, 0, -n)
	case Weeks:
		return now.AddDate(0, 0, -7*n)
	case Months:
		return shiftMonths(now, -n)
	case Years:
		return shiftMonths(now, -12*n)
	}
	panic(fmt.Sprintf("retention: unknown granularity %d", int(g)))
}

func shiftMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	years := total / 12
	if total%12 < 0 {
		years--
	}
	y += years
	m = time.Month(total-years*12) + 1

	if last := daysIn(y, m, t.Location()); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
