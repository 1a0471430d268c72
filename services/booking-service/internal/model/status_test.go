package model

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusRescheduled, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusRescheduled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusPending, false},
		{StatusRescheduled, StatusRescheduled, true},
		{StatusRescheduled, StatusCompleted, true},
		{StatusRescheduled, StatusCancelled, true},
		{StatusRescheduled, StatusConfirmed, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCompleted, StatusRescheduled, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusOccupying(t *testing.T) {
	occupying := []Status{StatusPending, StatusConfirmed, StatusRescheduled, StatusCompleted}
	for _, s := range occupying {
		if !s.Occupying() {
			t.Errorf("%s should occupy its slot", s)
		}
	}
	if StatusCancelled.Occupying() {
		t.Error("cancelled should release its slot")
	}
}

func TestStatusValid(t *testing.T) {
	if Status("unknown").Valid() {
		t.Error("unknown status should be invalid")
	}
	if !StatusPending.Valid() {
		t.Error("pending should be valid")
	}
}
