package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/salonflow/backend/services/booking-service/internal/booking"
	"github.com/salonflow/backend/services/booking-service/internal/storage"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps domain errors onto the HTTP surface. Anything unmapped is
// a 500 with a generic body; details go to the log, not the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case booking.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation"})
	case errors.Is(err, booking.ErrMasterNotFound),
		errors.Is(err, booking.ErrServiceNotFound),
		errors.Is(err, booking.ErrAppointmentNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
	case storage.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "slot_unavailable"})
	case booking.IsInvalidTransition(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, booking.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Code: "forbidden"})
	case errors.Is(err, booking.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "calendar busy, retry", Code: "busy"})
	default:
		if logger != nil {
			logger.Error("request failed", "err", err)
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
