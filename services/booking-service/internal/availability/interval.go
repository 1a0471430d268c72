package availability

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not overlap: [9:00, 10:00) and [10:00, 11:00)
// are compatible.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Extend pushes the end of the interval forward by d. Used to append a
// master's cleanup break after an occupying appointment.
func (i Interval) Extend(d time.Duration) Interval {
	return Interval{Start: i.Start, End: i.End.Add(d)}
}
