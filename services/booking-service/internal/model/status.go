package model

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
)

// transitions is the closed set of allowed state changes. Hard deletes are
// not listed here: delete is an admin-only escape hatch, not a transition.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed:   true,
		StatusRescheduled: true,
		StatusCancelled:   true,
	},
	StatusConfirmed: {
		StatusRescheduled: true,
		StatusCancelled:   true,
		StatusCompleted:   true,
	},
	StatusRescheduled: {
		StatusRescheduled: true,
		StatusCancelled:   true,
		StatusCompleted:   true,
	},
	StatusCancelled: {},
	StatusCompleted: {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	return allowed[next]
}

// Occupying reports whether an appointment in this state holds its time slot.
// Completed appointments keep occupying their historical interval, so the
// master's break after a visit stays enforced even when an admin closes it
// out early. Only cancellation releases the slot.
func (s Status) Occupying() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled, StatusCompleted:
		return true
	default:
		return false
	}
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}
