package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/salonflow/backend/services/booking-service/internal/booking"
	"github.com/salonflow/backend/services/booking-service/internal/model"
	"github.com/salonflow/backend/services/booking-service/internal/storage"
)

// Booking is the slice of the lifecycle manager the HTTP layer uses.
type Booking interface {
	Slots(ctx context.Context, masterID, serviceID string, day time.Time) ([]time.Time, error)
	Create(ctx context.Context, actor booking.Actor, req booking.CreateRequest) (model.Appointment, error)
	Confirm(ctx context.Context, actor booking.Actor, id string) (model.Appointment, error)
	Cancel(ctx context.Context, actor booking.Actor, id string) (model.Appointment, error)
	CancelByAdmin(ctx context.Context, actor booking.Actor, id, reason string) (model.Appointment, error)
	Reschedule(ctx context.Context, actor booking.Actor, id string, newStart time.Time) (model.Appointment, error)
	Delete(ctx context.Context, actor booking.Actor, id string) error
	Get(ctx context.Context, actor booking.Actor, id string) (model.Appointment, error)
	List(ctx context.Context, actor booking.Actor, f storage.ListFilter) ([]model.Appointment, error)
}

type BookingHandler struct {
	svc    Booking
	logger *slog.Logger
}

func NewBookingHandler(svc Booking, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/public/slots", h.slots)
	mux.HandleFunc("POST /api/v1/public/book", h.create)
	mux.HandleFunc("GET /api/v1/appointments", h.list)
	mux.HandleFunc("GET /api/v1/appointments/{id}", h.get)
	mux.HandleFunc("POST /api/v1/appointments/confirm", h.confirm)
	mux.HandleFunc("POST /api/v1/appointments/reschedule", h.reschedule)
	mux.HandleFunc("POST /api/v1/appointments/cancel", h.cancel)
	mux.HandleFunc("POST /api/v1/appointments/cancel-admin", h.cancelAdmin)
	mux.HandleFunc("POST /api/v1/appointments/delete", h.delete)
}

type slotsResponse struct {
	MasterID  string      `json:"master_id"`
	ServiceID string      `json:"service_id"`
	Date      string      `json:"date"`
	Slots     []time.Time `json:"slots"`
}

func (h *BookingHandler) slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	masterID := q.Get("master_id")
	serviceID := q.Get("service_id")
	dateRaw := q.Get("date")
	if masterID == "" || serviceID == "" || dateRaw == "" {
		writeError(w, h.logger, booking.Invalid("query", "master_id, service_id and date are required"))
		return
	}
	day, err := time.Parse("2006-01-02", dateRaw)
	if err != nil {
		writeError(w, h.logger, booking.Invalid("date", "expected YYYY-MM-DD"))
		return
	}

	slots, err := h.svc.Slots(r.Context(), masterID, serviceID, day)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		MasterID:  masterID,
		ServiceID: serviceID,
		Date:      dateRaw,
		Slots:     slots,
	})
}

type createRequest struct {
	MasterID  string    `json:"master_id"`
	ServiceID string    `json:"service_id"`
	StartTime time.Time `json:"start_time"`
	Comment   string    `json:"comment"`
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	var req createRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, booking.Invalid("body", "malformed json"))
		return
	}

	appt, err := h.svc.Create(r.Context(), actor, booking.CreateRequest{
		MasterID:  req.MasterID,
		ServiceID: req.ServiceID,
		StartTime: req.StartTime,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}

	q := r.URL.Query()
	filter := storage.ListFilter{
		ClientID: q.Get("client_id"),
		MasterID: q.Get("master_id"),
		Status:   model.Status(q.Get("status")),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, h.logger, booking.Invalid("from", "expected RFC3339"))
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, h.logger, booking.Invalid("to", "expected RFC3339"))
			return
		}
		filter.To = t
	}

	appts, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *BookingHandler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	appt, err := h.svc.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type idRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

func (h *BookingHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, func(ctx context.Context, actor booking.Actor, req idRequest) (model.Appointment, error) {
		return h.svc.Confirm(ctx, actor, req.ID)
	})
}

func (h *BookingHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, func(ctx context.Context, actor booking.Actor, req idRequest) (model.Appointment, error) {
		return h.svc.Cancel(ctx, actor, req.ID)
	})
}

func (h *BookingHandler) cancelAdmin(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, func(ctx context.Context, actor booking.Actor, req idRequest) (model.Appointment, error) {
		return h.svc.CancelByAdmin(ctx, actor, req.ID, req.Reason)
	})
}

func (h *BookingHandler) applyTransition(w http.ResponseWriter, r *http.Request, apply func(context.Context, booking.Actor, idRequest) (model.Appointment, error)) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	var req idRequest
	if err := decode(r, &req); err != nil || req.ID == "" {
		writeError(w, h.logger, booking.Invalid("id", "required"))
		return
	}
	appt, err := apply(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type rescheduleRequest struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
}

func (h *BookingHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	var req rescheduleRequest
	if err := decode(r, &req); err != nil || req.ID == "" {
		writeError(w, h.logger, booking.Invalid("id", "required"))
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), actor, req.ID, req.StartTime)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *BookingHandler) delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return
	}
	var req idRequest
	if err := decode(r, &req); err != nil || req.ID == "" {
		writeError(w, h.logger, booking.Invalid("id", "required"))
		return
	}
	if err := h.svc.Delete(r.Context(), actor, req.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
