package availability

import (
	"testing"
	"time"
)

var day = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC) // a Monday

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func TestAvailableSlotsEmptyCalendar(t *testing.T) {
	got := AvailableSlots(at(9, 0), at(12, 0), 60*time.Minute, nil, at(0, 0))
	want := []time.Time{at(9, 0), at(10, 0), at(11, 0)}
	assertSlots(t, got, want)
}

func TestAvailableSlotsBreakExtendsBooked(t *testing.T) {
	// A 10:00-11:00 appointment with a 15 minute break blocks until 11:15,
	// so the 11:00 slot is gone but 09:00 survives.
	busy := BusySet(
		[]Interval{{Start: at(10, 0), End: at(11, 0)}},
		15*time.Minute,
		nil,
	)
	got := AvailableSlots(at(9, 0), at(12, 0), 60*time.Minute, busy, at(0, 0))
	assertSlots(t, got, []time.Time{at(9, 0)})
}

func TestAvailableSlotsBlockInterval(t *testing.T) {
	busy := BusySet(nil, 15*time.Minute, []Interval{{Start: at(11, 0), End: at(11, 30)}})
	got := AvailableSlots(at(9, 0), at(12, 0), 60*time.Minute, busy, at(0, 0))
	assertSlots(t, got, []time.Time{at(9, 0), at(10, 0)})
}

func TestAvailableSlotsExcludesPast(t *testing.T) {
	got := AvailableSlots(at(9, 0), at(12, 0), 60*time.Minute, nil, at(10, 30))
	assertSlots(t, got, []time.Time{at(11, 0)})
}

func TestAvailableSlotsSlotMustFitWindow(t *testing.T) {
	// 90 minute service in a 09:00-12:00 window: 10:30+90m = 12:00 fits,
	// next step would overrun.
	got := AvailableSlots(at(9, 0), at(12, 0), 90*time.Minute, nil, at(0, 0))
	assertSlots(t, got, []time.Time{at(9, 0), at(10, 30)})
}

func TestAvailableSlotsTouchingBusyEdge(t *testing.T) {
	// Busy until exactly 10:00 leaves the 10:00 slot open.
	busy := []Interval{{Start: at(9, 0), End: at(10, 0)}}
	got := AvailableSlots(at(9, 0), at(12, 0), 60*time.Minute, busy, at(0, 0))
	assertSlots(t, got, []time.Time{at(10, 0), at(11, 0)})
}

func TestAvailableSlotsDegenerateInput(t *testing.T) {
	if got := AvailableSlots(at(12, 0), at(9, 0), 60*time.Minute, nil, at(0, 0)); len(got) != 0 {
		t.Fatalf("inverted window: expected no slots, got %v", got)
	}
	if got := AvailableSlots(at(9, 0), at(12, 0), 0, nil, at(0, 0)); len(got) != 0 {
		t.Fatalf("zero duration: expected no slots, got %v", got)
	}
}

func TestDaySlotsSpansWindows(t *testing.T) {
	windows := []Interval{
		{Start: at(9, 0), End: at(12, 0)},
		{Start: at(14, 0), End: at(16, 0)},
	}
	got := DaySlots(windows, 60*time.Minute, nil, at(0, 0))
	assertSlots(t, got, []time.Time{at(9, 0), at(10, 0), at(11, 0), at(14, 0), at(15, 0)})
}

func TestIntervalOverlaps(t *testing.T) {
	a := Interval{Start: at(9, 0), End: at(10, 0)}
	cases := []struct {
		name string
		b    Interval
		want bool
	}{
		{"identical", Interval{Start: at(9, 0), End: at(10, 0)}, true},
		{"nested", Interval{Start: at(9, 15), End: at(9, 45)}, true},
		{"partial", Interval{Start: at(9, 30), End: at(10, 30)}, true},
		{"touching after", Interval{Start: at(10, 0), End: at(11, 0)}, false},
		{"touching before", Interval{Start: at(8, 0), End: at(9, 0)}, false},
		{"disjoint", Interval{Start: at(11, 0), End: at(12, 0)}, false},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func assertSlots(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d slots %v, got %d slots %v", len(want), want, len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("slot %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
