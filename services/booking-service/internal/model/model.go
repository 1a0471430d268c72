package model

import "time"

// Master is a service provider whose calendar the engine manages.
type Master struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BreakMinutes int       `json:"break_minutes"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Service is a bookable offering with a fixed duration.
type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Currency        string    `json:"currency"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// WorkWindow is a recurring availability window on a weekday.
// Weekday follows ISO-8601: 1 is Monday, 7 is Sunday. Minutes are counted
// from local midnight, so 9:00 is 540.
type WorkWindow struct {
	ID          string `json:"id"`
	MasterID    string `json:"master_id"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	IsActive    bool   `json:"is_active"`
}

// BlockInterval is a one-off unavailability range on a master's calendar,
// such as vacation or sick leave. Half-open: [StartTime, EndTime).
type BlockInterval struct {
	ID        string    `json:"id"`
	MasterID  string    `json:"master_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Appointment is a client booking against a master's calendar.
// The stored interval [StartTime, EndTime) covers the service only; the
// master's break is applied when computing availability, not persisted here.
type Appointment struct {
	ID         string    `json:"id"`
	MasterID   string    `json:"master_id"`
	ServiceID  string    `json:"service_id"`
	ClientID   string    `json:"client_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     Status    `json:"status"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Comment    string    `json:"comment,omitempty"`
	// CancellationReason is set when the salon cancels on the client's
	// behalf; empty otherwise.
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
