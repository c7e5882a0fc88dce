// Package retention decides which backups of a series to keep and which to delete.
//
// Two mutually exclusive policies are supported. A count policy keeps the N
// most recently created backups. A calendar policy keeps, for each of days,
// weeks, months and years, the newest backup of every bucket whose creation
// time falls inside that granularity's window; the kept sets are unioned.
//
// Planning is a pure function of its inputs. It never talks to a store.
package retention

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// RuleLast names the reason given to records kept by a count policy.
const RuleLast = "last"

// Reason explains why a record was kept, or why a bucket representative lapsed.
type Reason struct {
	Rule        string // granularity name, or RuleLast
	Bucket      int
	WindowStart time.Time
}

// Verdict pairs a record with the reason it was judged.
type Verdict struct {
	Record Record
	Reason Reason
}

func (v Verdict) String() string {
	if v.Reason.Rule == RuleLast {
		return fmt.Sprintf("%s (%s)", v.Record.Name, RuleLast)
	}
	return fmt.Sprintf("%s (%s %s vs %s)", v.Record.Name, v.Reason.Rule,
		v.Record.CreatedAt.Format(time.RFC3339), v.Reason.WindowStart.Format(time.RFC3339))
}

// Decision is the outcome of a planning run.
type Decision struct {
	// Delete holds the records to remove, newest first. Records with no
	// creation time come last; equal times are ordered by ID.
	Delete []Record

	// Retained holds the kept records, newest first, each with the first
	// rule that kept it.
	Retained []Verdict

	// Lapsed holds calendar bucket representatives that fell outside a
	// granularity's window. A lapsed record may still be retained by a
	// coarser granularity.
	Lapsed []Verdict

	// Reordered is set when count-mode input was not sorted oldest first.
	Reordered bool
}

// Plan filters records by prefix and applies policy to what matches.
// Records not matching prefix appear in neither Delete nor Retained.
//
// now anchors the calendar windows and is ignored by count policies. Windows
// are computed in UTC, like bucket keys, whatever zone now carries.
func Plan(records []Record, prefix string, policy Policy, now time.Time) (Decision, error) {
	if err := policy.Validate(); err != nil {
		return Decision{}, err
	}
	now = now.UTC()

	matching := FilterPrefix(records, prefix)
	if len(matching) == 0 {
		return Decision{}, nil
	}

	if policy.Count != nil {
		return planCount(matching, policy.Count.MaxKeep), nil
	}
	return planCalendar(matching, *policy.Calendar, now), nil
}

// planCount keeps the newest maxKeep records. Listings are expected oldest
// first; anything else is stable-sorted by creation time before slicing and
// flagged through Decision.Reordered.
func planCount(matching []Record, maxKeep int) Decision {
	ordered := matching
	reordered := !slices.IsSortedFunc(matching, compareCreated)
	if reordered {
		ordered = slices.Clone(matching)
		slices.SortStableFunc(ordered, compareCreated)
	}

	cut := max(len(ordered)-maxKeep, 0)

	d := Decision{
		Delete:    newestFirst(slices.Clone(ordered[:cut])),
		Reordered: reordered,
	}
	for i := len(ordered) - 1; i >= cut; i-- {
		d.Retained = append(d.Retained, Verdict{
			Record: ordered[i],
			Reason: Reason{Rule: RuleLast, Bucket: len(ordered) - i},
		})
	}
	return d
}

// keptSet maps record IDs to the reason they were first kept.
type keptSet map[string]Reason

func planCalendar(matching []Record, policy CalendarPolicy, now time.Time) Decision {
	var d Decision

	kept := keptSet{}
	for _, g := range granularities {
		n := policy.Count(g)
		if n == 0 {
			continue
		}
		var lapsed []Verdict
		kept, lapsed = evaluate(g, windowStart(g, n, now), bucketize(g, matching), kept)
		d.Lapsed = append(d.Lapsed, lapsed...)
	}

	var deletions []Record
	for _, r := range matching {
		if reason, ok := kept[r.ID]; ok {
			d.Retained = append(d.Retained, Verdict{Record: r, Reason: reason})
			continue
		}
		deletions = append(deletions, r)
	}

	d.Delete = newestFirst(deletions)
	slices.SortStableFunc(d.Retained, func(a, b Verdict) int {
		return compareNewestFirst(a.Record, b.Record)
	})
	return d
}

// bucketize groups records by their bucket key for g. Records without a
// creation time cannot be placed and are skipped.
func bucketize(g Granularity, records []Record) map[int][]Record {
	buckets := make(map[int][]Record)
	for _, r := range records {
		if !r.HasCreatedAt() {
			continue
		}
		k := bucketKey(g, r.CreatedAt)
		buckets[k] = append(buckets[k], r)
	}
	return buckets
}

// evaluate walks buckets from the most recent key down and keeps each
// bucket's representative when it was created after start. It returns the
// extended kept set; the set passed in is not modified.
func evaluate(g Granularity, start time.Time, buckets map[int][]Record, kept keptSet) (keptSet, []Verdict) {
	next := maps.Clone(kept)
	var lapsed []Verdict

	keys := slices.Sorted(maps.Keys(buckets))
	slices.Reverse(keys)

	for _, k := range keys {
		rep := representative(buckets[k])
		if _, ok := next[rep.ID]; ok {
			continue
		}
		reason := Reason{Rule: g.String(), Bucket: k, WindowStart: start}
		if rep.CreatedAt.After(start) {
			next[rep.ID] = reason
		} else {
			lapsed = append(lapsed, Verdict{Record: rep, Reason: reason})
		}
	}
	return next, lapsed
}

// representative returns the newest record of a non-empty bucket. Ties go
// to the record listed first.
func representative(bucket []Record) Record {
	rep := bucket[0]
	for _, r := range bucket[1:] {
		if r.CreatedAt.After(rep.CreatedAt) {
			rep = r
		}
	}
	return rep
}

// compareCreated orders by creation time ascending, records without one first.
func compareCreated(a, b Record) int {
	switch {
	case !a.HasCreatedAt() && !b.HasCreatedAt():
		return 0
	case !a.HasCreatedAt():
		return -1
	case !b.HasCreatedAt():
		return 1
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func compareNewestFirst(a, b Record) int {
	if c := compareCreated(b, a); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func newestFirst(records []Record) []Record {
	slices.SortStableFunc(records, compareNewestFirst)
	return records
}
