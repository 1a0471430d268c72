package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// AppointmentEvent mirrors the booking service's published payload. Only the
// fields notifications need are decoded.
type AppointmentEvent struct {
	EventID       string     `json:"event_id"`
	AppointmentID string     `json:"appointment_id"`
	MasterID      string     `json:"master_id"`
	ServiceID     string     `json:"service_id"`
	ClientID      string     `json:"client_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Status        string     `json:"status"`
	PreviousStart *time.Time `json:"previous_start,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func DecodeEvent(raw []byte) (AppointmentEvent, error) {
	var ev AppointmentEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("decode appointment event: %w", err)
	}
	if ev.EventID == "" || ev.AppointmentID == "" {
		return ev, fmt.Errorf("appointment event missing identifiers")
	}
	return ev, nil
}

// Message is a rendered notification ready for any channel.
type Message struct {
	Subject string
	Body    string
}

const timeLayout = "Mon, 2 Jan 2006 at 15:04"

// Build renders the client-facing text for a lifecycle topic.
func Build(topic string, ev AppointmentEvent) (Message, bool) {
	when := ev.StartTime.Format(timeLayout)
	switch topic {
	case "booking.appointment.created.v1":
		return Message{
			Subject: "Booking received",
			Body:    fmt.Sprintf("We received your booking for %s. We will confirm it shortly.", when),
		}, true
	case "booking.appointment.confirmed.v1":
		return Message{
			Subject: "Booking confirmed",
			Body:    fmt.Sprintf("Your appointment on %s is confirmed. See you then!", when),
		}, true
	case "booking.appointment.rescheduled.v1":
		body := fmt.Sprintf("Your appointment has been moved to %s.", when)
		if ev.PreviousStart != nil {
			body = fmt.Sprintf("Your appointment originally on %s has been moved to %s.",
				ev.PreviousStart.Format(timeLayout), when)
		}
		return Message{Subject: "Booking rescheduled", Body: body}, true
	case "booking.appointment.cancelled.v1":
		body := fmt.Sprintf("Your appointment on %s has been cancelled.", when)
		if ev.Reason != "" {
			body = fmt.Sprintf("Your appointment on %s has been cancelled by the salon: %s.", when, ev.Reason)
		}
		return Message{Subject: "Booking cancelled", Body: body}, true
	case "booking.appointment.completed.v1":
		return Message{
			Subject: "Thanks for visiting",
			Body:    "Thank you for your visit. We hope to see you again soon!",
		}, true
	default:
		// Deleted and unknown topics produce no client notification.
		return Message{}, false
	}
}
