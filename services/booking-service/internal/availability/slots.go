package availability

import (
	"sort"
	"time"
)

// DaySlots runs the slot walk over every work window of a day and returns
// the accepted starts sorted ascending. Windows are assumed not to overlap
// each other.
func DaySlots(windows []Interval, duration time.Duration, busy []Interval, now time.Time) []time.Time {
	slots := []time.Time{}
	for _, w := range windows {
		slots = append(slots, AvailableSlots(w.Start, w.End, duration, busy, now)...)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

// AvailableSlots walks a work window in steps of the service duration and
// returns every start time whose interval [start, start+duration) fits
// entirely inside the window, does not overlap any busy interval, and has
// not already begun relative to now.
//
// Busy intervals are taken as-is: callers extend occupying appointments by
// the master's break before passing them in, while block intervals come
// through raw. The candidate interval itself is never padded, which keeps a
// slot that starts exactly when a busy interval ends bookable.
func AvailableSlots(windowStart, windowEnd time.Time, duration time.Duration, busy []Interval, now time.Time) []time.Time {
	slots := []time.Time{}
	if duration <= 0 || !windowStart.Before(windowEnd) {
		return slots
	}

	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(duration) {
		if start.Before(now) {
			continue
		}
		candidate := Interval{Start: start, End: start.Add(duration)}
		if overlapsAny(candidate, busy) {
			continue
		}
		slots = append(slots, start)
	}
	return slots
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// BusySet builds the exclusion set for a master's day: occupying
// appointments extended by the break, plus block intervals unchanged.
func BusySet(appointments []Interval, breakDur time.Duration, blocks []Interval) []Interval {
	out := make([]Interval, 0, len(appointments)+len(blocks))
	for _, a := range appointments {
		out = append(out, a.Extend(breakDur))
	}
	out = append(out, blocks...)
	return out
}
