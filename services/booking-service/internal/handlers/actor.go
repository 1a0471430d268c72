package handlers

import (
	"net/http"

	"github.com/salonflow/backend/services/booking-service/internal/booking"
)

// The gateway terminates JWTs and forwards identity as headers.
const (
	headerClientID = "X-Client-Id"
	headerRole     = "X-Role"
)

func actorFrom(r *http.Request) (booking.Actor, bool) {
	id := r.Header.Get(headerClientID)
	if id == "" {
		return booking.Actor{}, false
	}
	return booking.Actor{ID: id, Role: r.Header.Get(headerRole)}, true
}
