package retention

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned when a policy is not exactly one of count or calendar.
var ErrInvalidPolicy = errors.New("invalid retention policy")

// CountPolicy keeps the MaxKeep most recently created records.
type CountPolicy struct {
	MaxKeep int
}

// CalendarPolicy keeps one record per bucket for each granularity, as long as
// the bucket's newest record is younger than the granularity's window.
// A zero count disables that granularity.
type CalendarPolicy struct {
	Days   int
	Weeks  int
	Months int
	Years  int
}

// Count returns the configured count for g.
func (c CalendarPolicy) Count(g Granularity) int {
	switch g {
	case Days:
		return c.Days
	case Weeks:
		return c.Weeks
	case Months:
		return c.Months
	case Years:
		return c.Years
	}
	return 0
}

func (c CalendarPolicy) String() string {
	return fmt.Sprintf("%d days, %d weeks, %d months, %d years", c.Days, c.Weeks, c.Months, c.Years)
}

// Policy selects exactly one of Count or Calendar.
type Policy struct {
	Count    *CountPolicy
	Calendar *CalendarPolicy
}

// KeepLast is shorthand for a count policy.
func KeepLast(n int) Policy {
	return Policy{Count: &CountPolicy{MaxKeep: n}}
}

// KeepCalendar is shorthand for a calendar policy.
func KeepCalendar(c CalendarPolicy) Policy {
	return Policy{Calendar: &c}
}

// Validate returns an error wrapping ErrInvalidPolicy unless exactly one
// policy kind is set and its counts are usable.
func (p Policy) Validate() error {
	switch {
	case p.Count != nil && p.Calendar != nil:
		return fmt.Errorf("%w: count and calendar policies are mutually exclusive", ErrInvalidPolicy)
	case p.Count == nil && p.Calendar == nil:
		return fmt.Errorf("%w: no policy given", ErrInvalidPolicy)
	case p.Count != nil:
		if p.Count.MaxKeep < 0 {
			return fmt.Errorf("%w: keep count %d is negative", ErrInvalidPolicy, p.Count.MaxKeep)
		}
		return nil
	}

	active := 0
	for _, g := range granularities {
		n := p.Calendar.Count(g)
		if n < 0 {
			return fmt.Errorf("%w: %s count %d is negative", ErrInvalidPolicy, g, n)
		}
		if n > 0 {
			active++
		}
	}
	if active == 0 {
		return fmt.Errorf("%w: calendar policy has no non-zero granularity", ErrInvalidPolicy)
	}
	return nil
}

func (p Policy) String() string {
	switch {
	case p.Count != nil && p.Calendar == nil:
		return fmt.Sprintf("keep last %d", p.Count.MaxKeep)
	case p.Calendar != nil && p.Count == nil:
		return "keep " + p.Calendar.String()
	}
	return "invalid"
}
