package outbox

import (
	"time"

	"github.com/salonflow/backend/services/booking-service/internal/model"
)

// Topic per event type. Consumers subscribe to the topics they care about.
const (
	TopicAppointmentCreated     = "booking.appointment.created.v1"
	TopicAppointmentConfirmed   = "booking.appointment.confirmed.v1"
	TopicAppointmentRescheduled = "booking.appointment.rescheduled.v1"
	TopicAppointmentCancelled   = "booking.appointment.cancelled.v1"
	TopicAppointmentCompleted   = "booking.appointment.completed.v1"
	TopicAppointmentDeleted     = "booking.appointment.deleted.v1"
)

// AppointmentEvent is the payload published for every lifecycle change.
// PreviousStart/PreviousEnd are set only on reschedules.
type AppointmentEvent struct {
	EventID       string       `json:"event_id"`
	AppointmentID string       `json:"appointment_id"`
	MasterID      string       `json:"master_id"`
	ServiceID     string       `json:"service_id"`
	ClientID      string       `json:"client_id"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       time.Time    `json:"end_time"`
	Status        model.Status `json:"status"`
	PreviousStart *time.Time   `json:"previous_start,omitempty"`
	PreviousEnd   *time.Time   `json:"previous_end,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	ActorRole     string       `json:"actor_role"`
	OccurredAt    time.Time    `json:"occurred_at"`
}
