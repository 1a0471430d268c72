package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/salonflow/backend/libs/auth"
	"github.com/salonflow/backend/services/booking-service/internal/booking"
	"github.com/salonflow/backend/services/booking-service/internal/model"
)

// Catalog is the schedule repository surface the admin API needs.
type Catalog interface {
	CreateMaster(ctx context.Context, name string, breakMinutes int) (model.Master, error)
	ListMasters(ctx context.Context) ([]model.Master, error)
	CreateService(ctx context.Context, name string, durationMinutes int, priceCents int64, currency string) (model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	CreateWorkWindow(ctx context.Context, w model.WorkWindow) (model.WorkWindow, error)
	UpdateWorkWindow(ctx context.Context, w model.WorkWindow) (model.WorkWindow, error)
	DeleteWorkWindow(ctx context.Context, id string) error
	ListWorkWindows(ctx context.Context, masterID string) ([]model.WorkWindow, error)
	ListBlockIntervals(ctx context.Context, masterID string, from, to time.Time) ([]model.BlockInterval, error)
}

// Blocks routes block writes through the lifecycle manager so cache
// invalidation and auditing stay in one place.
type Blocks interface {
	CreateBlock(ctx context.Context, actor booking.Actor, b model.BlockInterval) (model.BlockInterval, error)
	DeleteBlock(ctx context.Context, actor booking.Actor, masterID, blockID string) error
}

type ScheduleHandler struct {
	catalog Catalog
	blocks  Blocks
	cache   booking.SlotCacher
	logger  *slog.Logger
}

func NewScheduleHandler(catalog Catalog, blocks Blocks, cache booking.SlotCacher, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{catalog: catalog, blocks: blocks, cache: cache, logger: logger}
}

func (h *ScheduleHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/admin/masters", h.requireAdmin(h.listMasters))
	mux.HandleFunc("POST /api/v1/admin/masters", h.requireAdmin(h.createMaster))
	mux.HandleFunc("GET /api/v1/admin/services", h.requireAdmin(h.listServices))
	mux.HandleFunc("POST /api/v1/admin/services", h.requireAdmin(h.createService))
	mux.HandleFunc("GET /api/v1/admin/work-windows", h.requireAdmin(h.listWorkWindows))
	mux.HandleFunc("POST /api/v1/admin/work-windows", h.requireAdmin(h.createWorkWindow))
	mux.HandleFunc("PUT /api/v1/admin/work-windows", h.requireAdmin(h.updateWorkWindow))
	mux.HandleFunc("POST /api/v1/admin/work-windows/delete", h.requireAdmin(h.deleteWorkWindow))
	mux.HandleFunc("GET /api/v1/admin/blocks", h.requireAdmin(h.listBlocks))
	mux.HandleFunc("POST /api/v1/admin/blocks", h.requireAdmin(h.createBlock))
	mux.HandleFunc("POST /api/v1/admin/blocks/delete", h.requireAdmin(h.deleteBlock))

	// The public catalog is read-only.
	mux.HandleFunc("GET /api/v1/public/masters", h.listMasters)
	mux.HandleFunc("GET /api/v1/public/services", h.listServices)
}

func (h *ScheduleHandler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}
		if actor.Role != auth.RoleAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Code: "forbidden"})
			return
		}
		next(w, r)
	}
}

type createMasterRequest struct {
	Name         string `json:"name"`
	BreakMinutes int    `json:"break_minutes"`
}

func (h *ScheduleHandler) createMaster(w http.ResponseWriter, r *http.Request) {
	var req createMasterRequest
	if err := decode(r, &req); err != nil || req.Name == "" {
		writeError(w, h.logger, booking.Invalid("name", "required"))
		return
	}
	if req.BreakMinutes < 0 || req.BreakMinutes > 120 {
		writeError(w, h.logger, booking.Invalid("break_minutes", "must be between 0 and 120"))
		return
	}
	m, err := h.catalog.CreateMaster(r.Context(), req.Name, req.BreakMinutes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *ScheduleHandler) listMasters(w http.ResponseWriter, r *http.Request) {
	masters, err := h.catalog.ListMasters(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if masters == nil {
		masters = []model.Master{}
	}
	writeJSON(w, http.StatusOK, masters)
}

type createServiceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Currency        string `json:"currency"`
}

func (h *ScheduleHandler) createService(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := decode(r, &req); err != nil || req.Name == "" {
		writeError(w, h.logger, booking.Invalid("name", "required"))
		return
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > 480 {
		writeError(w, h.logger, booking.Invalid("duration_minutes", "must be between 1 and 480"))
		return
	}
	if req.PriceCents < 0 {
		writeError(w, h.logger, booking.Invalid("price_cents", "must not be negative"))
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	s, err := h.catalog.CreateService(r.Context(), req.Name, req.DurationMinutes, req.PriceCents, req.Currency)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *ScheduleHandler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.catalog.ListServices(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *ScheduleHandler) createWorkWindow(w http.ResponseWriter, r *http.Request) {
	var req model.WorkWindow
	if err := decode(r, &req); err != nil || req.MasterID == "" {
		writeError(w, h.logger, booking.Invalid("master_id", "required"))
		return
	}
	if err := validateWorkWindow(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.IsActive = true
	saved, err := h.catalog.CreateWorkWindow(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.Invalidate(r.Context(), req.MasterID)
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *ScheduleHandler) updateWorkWindow(w http.ResponseWriter, r *http.Request) {
	var req model.WorkWindow
	if err := decode(r, &req); err != nil || req.ID == "" || req.MasterID == "" {
		writeError(w, h.logger, booking.Invalid("id", "id and master_id are required"))
		return
	}
	if err := validateWorkWindow(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	saved, err := h.catalog.UpdateWorkWindow(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.Invalidate(r.Context(), req.MasterID)
	}
	writeJSON(w, http.StatusOK, saved)
}

type deleteWorkWindowRequest struct {
	ID       string `json:"id"`
	MasterID string `json:"master_id"`
}

func (h *ScheduleHandler) deleteWorkWindow(w http.ResponseWriter, r *http.Request) {
	var req deleteWorkWindowRequest
	if err := decode(r, &req); err != nil || req.ID == "" || req.MasterID == "" {
		writeError(w, h.logger, booking.Invalid("id", "id and master_id are required"))
		return
	}
	if err := h.catalog.DeleteWorkWindow(r.Context(), req.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.Invalidate(r.Context(), req.MasterID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateWorkWindow(w model.WorkWindow) error {
	if w.Weekday < 1 || w.Weekday > 7 {
		return booking.Invalid("weekday", "must be 1 (Monday) through 7 (Sunday)")
	}
	if w.StartMinute < 0 || w.EndMinute > 24*60 || w.StartMinute >= w.EndMinute {
		return booking.Invalid("start_minute", "window must be within the day and non-empty")
	}
	return nil
}

func (h *ScheduleHandler) listWorkWindows(w http.ResponseWriter, r *http.Request) {
	masterID := r.URL.Query().Get("master_id")
	if masterID == "" {
		writeError(w, h.logger, booking.Invalid("master_id", "required"))
		return
	}
	windows, err := h.catalog.ListWorkWindows(r.Context(), masterID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if windows == nil {
		windows = []model.WorkWindow{}
	}
	writeJSON(w, http.StatusOK, windows)
}

func (h *ScheduleHandler) createBlock(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req model.BlockInterval
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, booking.Invalid("body", "malformed json"))
		return
	}
	created, err := h.blocks.CreateBlock(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type deleteBlockRequest struct {
	ID       string `json:"id"`
	MasterID string `json:"master_id"`
}

func (h *ScheduleHandler) deleteBlock(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req deleteBlockRequest
	if err := decode(r, &req); err != nil || req.ID == "" || req.MasterID == "" {
		writeError(w, h.logger, booking.Invalid("id", "id and master_id are required"))
		return
	}
	if err := h.blocks.DeleteBlock(r.Context(), actor, req.MasterID, req.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) listBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	masterID := q.Get("master_id")
	if masterID == "" {
		writeError(w, h.logger, booking.Invalid("master_id", "required"))
		return
	}
	from, to := time.Time{}, time.Time{}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, h.logger, booking.Invalid("from", "expected RFC3339"))
			return
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, h.logger, booking.Invalid("to", "expected RFC3339"))
			return
		}
		to = t
	}
	if from.IsZero() {
		from = time.Now()
	}
	if to.IsZero() {
		to = from.AddDate(0, 1, 0)
	}

	blocks, err := h.catalog.ListBlockIntervals(r.Context(), masterID, from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if blocks == nil {
		blocks = []model.BlockInterval{}
	}
	writeJSON(w, http.StatusOK, blocks)
}
