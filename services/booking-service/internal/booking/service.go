package booking

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salonflow/backend/libs/auth"
	"github.com/salonflow/backend/services/booking-service/internal/audit"
	"github.com/salonflow/backend/services/booking-service/internal/availability"
	"github.com/salonflow/backend/services/booking-service/internal/model"
	"github.com/salonflow/backend/services/booking-service/internal/outbox"
	"github.com/salonflow/backend/services/booking-service/internal/pricing"
	"github.com/salonflow/backend/services/booking-service/internal/storage"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == auth.RoleAdmin }

// SystemActor runs background jobs such as the completion sweep.
var SystemActor = Actor{ID: "system", Role: "system"}

// AppointmentStore is the slice of the appointment repository the lifecycle
// manager needs.
type AppointmentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	TryLockMaster(ctx context.Context, tx pgx.Tx, masterID string) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, a model.Appointment) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status, reason string) error
	Reschedule(ctx context.Context, tx pgx.Tx, id string, start, end time.Time) error
	Delete(ctx context.Context, tx pgx.Tx, id string) error
	BookedIntervals(ctx context.Context, tx pgx.Tx, masterID string, from, to time.Time, excludeID string) ([]availability.Interval, error)
	BookedIntervalsRead(ctx context.Context, masterID string, from, to time.Time) ([]availability.Interval, error)
	List(ctx context.Context, f storage.ListFilter) ([]model.Appointment, error)
}

type ScheduleStore interface {
	GetMaster(ctx context.Context, id string) (model.Master, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ActiveWorkWindows(ctx context.Context, masterID string, weekday int) ([]model.WorkWindow, error)
	ListBlockIntervals(ctx context.Context, masterID string, from, to time.Time) ([]model.BlockInterval, error)
	CreateBlockInterval(ctx context.Context, tx pgx.Tx, b model.BlockInterval) (model.BlockInterval, error)
	DeleteBlockInterval(ctx context.Context, id string) error
}

type EventStore interface {
	Enqueue(ctx context.Context, tx pgx.Tx, eventType string, ev outbox.AppointmentEvent) error
}

type AuditSink interface {
	Record(ctx context.Context, tx pgx.Tx, action, actorID, actorRole, subjectID string, detail any) error
	RecordDirect(ctx context.Context, action, actorID, actorRole, subjectID string, detail any) error
}

type SlotCacher interface {
	Get(ctx context.Context, masterID, serviceID, day string) ([]time.Time, bool)
	Set(ctx context.Context, masterID, serviceID, day string, slots []time.Time)
	Invalidate(ctx context.Context, masterID string) error
}

type LivePublisher interface {
	Publish(ctx context.Context, ev LiveEvent)
}

// LiveEvent mirrors the live hub's event so this package does not depend on
// the transport.
type LiveEvent struct {
	Kind          string
	MasterID      string
	AppointmentID string
	Status        string
}

const (
	LiveSlotUpdate   = "slot-update"
	LiveStatusChange = "appointment-status-change"
)

// Service implements the appointment lifecycle: creation, confirmation,
// reschedule, cancellation, completion and hard deletion, plus availability
// queries. All calendar writes for one master are serialized through a
// transaction-scoped advisory lock; the storage layer's exclusion constraint
// is the backstop should the lock ever be bypassed.
type Service struct {
	appointments AppointmentStore
	schedule     ScheduleStore
	events       EventStore
	audit        AuditSink
	cache        SlotCacher
	live         LivePublisher
	pricing      pricing.Provider
	logger       *slog.Logger
	loc          *time.Location
	now          func() time.Time

	lockAttempts int
	lockBackoff  time.Duration
}

type Config struct {
	Appointments AppointmentStore
	Schedule     ScheduleStore
	Events       EventStore
	Audit        AuditSink
	Cache        SlotCacher
	Live         LivePublisher
	Pricing      pricing.Provider
	Logger       *slog.Logger
	Location     *time.Location
	Now          func() time.Time
}

func NewService(cfg Config) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		appointments: cfg.Appointments,
		schedule:     cfg.Schedule,
		events:       cfg.Events,
		audit:        cfg.Audit,
		cache:        cfg.Cache,
		live:         cfg.Live,
		pricing:      cfg.Pricing,
		logger:       cfg.Logger,
		loc:          loc,
		now:          now,
		lockAttempts: 5,
		lockBackoff:  40 * time.Millisecond,
	}
}

// Slots returns bookable start times for a master, service and calendar day.
func (s *Service) Slots(ctx context.Context, masterID, serviceID string, day time.Time) ([]time.Time, error) {
	master, err := s.schedule.GetMaster(ctx, masterID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrMasterNotFound
		}
		return nil, err
	}
	if !master.IsActive {
		return nil, ErrMasterNotFound
	}
	svc, err := s.schedule.GetService(ctx, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	if !svc.IsActive {
		return nil, ErrServiceNotFound
	}

	// The handler parses the date without a zone; reinterpret the calendar
	// day in the salon's timezone rather than converting the instant, which
	// would shift the date across midnight for zones west of UTC.
	y, m, d := day.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	dayKey := day.Format("2006-01-02")
	if s.cache != nil {
		if slots, ok := s.cache.Get(ctx, masterID, serviceID, dayKey); ok {
			return slots, nil
		}
	}

	windows, err := s.dayWindows(ctx, masterID, day)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		// Day off: a valid outcome, not an error.
		slots := []time.Time{}
		if s.cache != nil {
			s.cache.Set(ctx, masterID, serviceID, dayKey, slots)
		}
		return slots, nil
	}

	breakDur := time.Duration(master.BreakMinutes) * time.Minute
	busy, err := s.busySetRead(ctx, masterID, windows[0].Start, windows[len(windows)-1].End, breakDur)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	slots := availability.DaySlots(windows, duration, busy, s.now())
	if s.cache != nil {
		s.cache.Set(ctx, masterID, serviceID, dayKey, slots)
	}
	return slots, nil
}

// dayWindows resolves the active work windows for a calendar day into
// absolute intervals, ordered by start.
func (s *Service) dayWindows(ctx context.Context, masterID string, day time.Time) ([]availability.Interval, error) {
	windows, err := s.schedule.ActiveWorkWindows(ctx, masterID, isoWeekday(day))
	if err != nil {
		return nil, err
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	out := make([]availability.Interval, 0, len(windows))
	for _, w := range windows {
		out = append(out, availability.Interval{
			Start: midnight.Add(time.Duration(w.StartMinute) * time.Minute),
			End:   midnight.Add(time.Duration(w.EndMinute) * time.Minute),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// CreateRequest is the input for booking a new appointment.
type CreateRequest struct {
	MasterID  string
	ServiceID string
	StartTime time.Time
	Comment   string
}

func (s *Service) Create(ctx context.Context, actor Actor, req CreateRequest) (model.Appointment, error) {
	var zero model.Appointment
	if req.MasterID == "" {
		return zero, Invalid("master_id", "required")
	}
	if req.ServiceID == "" {
		return zero, Invalid("service_id", "required")
	}
	if req.StartTime.IsZero() {
		return zero, Invalid("start_time", "required")
	}
	if req.StartTime.Before(s.now()) {
		return zero, Invalid("start_time", "must be in the future")
	}
	if len(req.Comment) > 500 {
		return zero, Invalid("comment", "too long")
	}

	master, err := s.schedule.GetMaster(ctx, req.MasterID)
	if err != nil {
		if storage.IsNotFound(err) {
			return zero, ErrMasterNotFound
		}
		return zero, err
	}
	if !master.IsActive {
		return zero, ErrMasterNotFound
	}
	svc, err := s.schedule.GetService(ctx, req.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			return zero, ErrServiceNotFound
		}
		return zero, err
	}
	if !svc.IsActive {
		return zero, ErrServiceNotFound
	}

	start := req.StartTime.In(s.loc)
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	quote, err := s.pricing.Quote(ctx, svc, actor.ID)
	if err != nil {
		return zero, err
	}

	appt := model.Appointment{
		ID:         uuid.NewString(),
		MasterID:   req.MasterID,
		ServiceID:  req.ServiceID,
		ClientID:   actor.ID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.StatusPending,
		PriceCents: quote.AmountCents,
		Currency:   quote.Currency,
		Comment:    req.Comment,
	}

	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback(ctx)

	if err := s.lockMaster(ctx, tx, req.MasterID); err != nil {
		return zero, err
	}
	if err := s.checkSlotFree(ctx, tx, master, appt.StartTime, appt.EndTime, ""); err != nil {
		return zero, err
	}
	if err := s.appointments.Insert(ctx, tx, appt); err != nil {
		if storage.IsConflict(err) {
			return zero, ErrSlotUnavailable
		}
		return zero, err
	}

	ev := s.eventFor(appt, actor)
	if err := s.events.Enqueue(ctx, tx, outbox.TopicAppointmentCreated, ev); err != nil {
		return zero, err
	}
	if err := s.audit.Record(ctx, tx, audit.ActionCreate, actor.ID, actor.Role, appt.ID, appt); err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return zero, ErrSlotUnavailable
		}
		return zero, err
	}

	s.afterCalendarChange(ctx, appt)
	return appt, nil
}

// Confirm marks a pending appointment as confirmed. Admin only.
func (s *Service) Confirm(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	if !actor.IsAdmin() {
		return model.Appointment{}, ErrForbidden
	}
	return s.transition(ctx, actor, id, model.StatusConfirmed, outbox.TopicAppointmentConfirmed, audit.ActionConfirm, "", nil)
}

// Cancel is the client-facing cancellation. Admins may cancel anyone's
// appointment; clients only their own.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	owns := func(a model.Appointment) error {
		if !actor.IsAdmin() && a.ClientID != actor.ID {
			return ErrForbidden
		}
		return nil
	}
	return s.transition(ctx, actor, id, model.StatusCancelled, outbox.TopicAppointmentCancelled, audit.ActionCancel, "", owns)
}

// CancelByAdmin cancels on behalf of the salon. The reason is persisted on
// the appointment and travels with the cancelled event so notifications can
// tell the client why.
func (s *Service) CancelByAdmin(ctx context.Context, actor Actor, id, reason string) (model.Appointment, error) {
	if !actor.IsAdmin() {
		return model.Appointment{}, ErrForbidden
	}
	return s.transition(ctx, actor, id, model.StatusCancelled, outbox.TopicAppointmentCancelled, audit.ActionCancelAdmin, reason, nil)
}

// Complete marks a finished appointment. Called by the sweep worker and by
// admins closing out a visit manually.
func (s *Service) Complete(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	if !actor.IsAdmin() && actor != SystemActor {
		return model.Appointment{}, ErrForbidden
	}
	return s.transition(ctx, actor, id, model.StatusCompleted, outbox.TopicAppointmentCompleted, audit.ActionComplete, "", nil)
}

// Reschedule moves an appointment to a new start time, keeping its service
// and therefore its duration and price.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id string, newStart time.Time) (model.Appointment, error) {
	var zero model.Appointment
	if newStart.IsZero() {
		return zero, Invalid("start_time", "required")
	}
	if newStart.Before(s.now()) {
		return zero, Invalid("start_time", "must be in the future")
	}

	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback(ctx)

	appt, err := s.appointments.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return zero, ErrAppointmentNotFound
		}
		return zero, err
	}
	if !actor.IsAdmin() && appt.ClientID != actor.ID {
		return zero, ErrForbidden
	}
	if !appt.Status.CanTransitionTo(model.StatusRescheduled) {
		return zero, &InvalidTransitionError{From: string(appt.Status), To: string(model.StatusRescheduled)}
	}

	master, err := s.schedule.GetMaster(ctx, appt.MasterID)
	if err != nil {
		if storage.IsNotFound(err) {
			return zero, ErrMasterNotFound
		}
		return zero, err
	}

	if err := s.lockMaster(ctx, tx, appt.MasterID); err != nil {
		return zero, err
	}

	start := newStart.In(s.loc)
	duration := appt.EndTime.Sub(appt.StartTime)
	end := start.Add(duration)
	if err := s.checkSlotFree(ctx, tx, master, start, end, appt.ID); err != nil {
		return zero, err
	}
	if err := s.appointments.Reschedule(ctx, tx, appt.ID, start, end); err != nil {
		if storage.IsConflict(err) {
			return zero, ErrSlotUnavailable
		}
		return zero, err
	}

	prevStart, prevEnd := appt.StartTime, appt.EndTime
	updated := appt
	updated.StartTime = start
	updated.EndTime = end
	updated.Status = model.StatusRescheduled

	ev := s.eventFor(updated, actor)
	ev.PreviousStart = &prevStart
	ev.PreviousEnd = &prevEnd
	if err := s.events.Enqueue(ctx, tx, outbox.TopicAppointmentRescheduled, ev); err != nil {
		return zero, err
	}
	if err := s.audit.Record(ctx, tx, audit.ActionReschedule, actor.ID, actor.Role, appt.ID, map[string]any{
		"from": prevStart, "to": start,
	}); err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			return zero, ErrSlotUnavailable
		}
		return zero, err
	}

	s.afterCalendarChange(ctx, updated)
	return updated, nil
}

// Delete removes an appointment outright. Admin only; bypasses the state
// machine and is audited separately from cancellation.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	appt, err := s.appointments.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return ErrAppointmentNotFound
		}
		return err
	}
	if err := s.appointments.Delete(ctx, tx, id); err != nil {
		return err
	}

	ev := s.eventFor(appt, actor)
	if err := s.events.Enqueue(ctx, tx, outbox.TopicAppointmentDeleted, ev); err != nil {
		return err
	}
	if err := s.audit.Record(ctx, tx, audit.ActionDelete, actor.ID, actor.Role, id, appt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if appt.Status.Occupying() {
		s.afterCalendarChange(ctx, appt)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrAppointmentNotFound
		}
		return model.Appointment{}, err
	}
	if !actor.IsAdmin() && appt.ClientID != actor.ID {
		return model.Appointment{}, ErrForbidden
	}
	return appt, nil
}

// List returns appointments visible to the actor. Clients are pinned to
// their own bookings regardless of the requested filter.
func (s *Service) List(ctx context.Context, actor Actor, f storage.ListFilter) ([]model.Appointment, error) {
	if !actor.IsAdmin() {
		f.ClientID = actor.ID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, Invalid("status", "unknown status")
	}
	return s.appointments.List(ctx, f)
}

// CreateBlock reserves a one-off unavailability range on a master's
// calendar. Runs under the per-master lock and rejects a block that would
// overlap an occupying appointment: blocks exclude future bookings, they do
// not evict existing ones.
func (s *Service) CreateBlock(ctx context.Context, actor Actor, b model.BlockInterval) (model.BlockInterval, error) {
	var zero model.BlockInterval
	if !actor.IsAdmin() {
		return zero, ErrForbidden
	}
	if b.MasterID == "" {
		return zero, Invalid("master_id", "required")
	}
	if !b.StartTime.Before(b.EndTime) {
		return zero, Invalid("end_time", "must be after start_time")
	}
	if _, err := s.schedule.GetMaster(ctx, b.MasterID); err != nil {
		if storage.IsNotFound(err) {
			return zero, ErrMasterNotFound
		}
		return zero, err
	}

	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback(ctx)

	if err := s.lockMaster(ctx, tx, b.MasterID); err != nil {
		return zero, err
	}
	booked, err := s.appointments.BookedIntervals(ctx, tx, b.MasterID, b.StartTime, b.EndTime, "")
	if err != nil {
		return zero, err
	}
	block := availability.Interval{Start: b.StartTime, End: b.EndTime}
	for _, iv := range booked {
		if block.Overlaps(iv) {
			return zero, ErrSlotUnavailable
		}
	}

	created, err := s.schedule.CreateBlockInterval(ctx, tx, b)
	if err != nil {
		return zero, err
	}
	if err := s.audit.Record(ctx, tx, audit.ActionBlockCreate, actor.ID, actor.Role, created.ID, created); err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, err
	}

	s.invalidate(ctx, b.MasterID)
	return created, nil
}

func (s *Service) DeleteBlock(ctx context.Context, actor Actor, masterID, blockID string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.schedule.DeleteBlockInterval(ctx, blockID); err != nil {
		if storage.IsNotFound(err) {
			return ErrAppointmentNotFound
		}
		return err
	}
	_ = s.audit.RecordDirect(ctx, audit.ActionBlockDelete, actor.ID, actor.Role, blockID, nil)
	s.invalidate(ctx, masterID)
	return nil
}

// transition applies a status-only lifecycle change under a row lock. The
// reason is persisted and published for admin cancellations; other
// transitions pass it empty.
func (s *Service) transition(ctx context.Context, actor Actor, id string, to model.Status, topic, action, reason string, authorize func(model.Appointment) error) (model.Appointment, error) {
	var zero model.Appointment

	tx, err := s.appointments.Begin(ctx)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback(ctx)

	appt, err := s.appointments.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return zero, ErrAppointmentNotFound
		}
		return zero, err
	}
	if authorize != nil {
		if err := authorize(appt); err != nil {
			return zero, err
		}
	}
	if !appt.Status.CanTransitionTo(to) {
		return zero, &InvalidTransitionError{From: string(appt.Status), To: string(to)}
	}
	if err := s.appointments.UpdateStatus(ctx, tx, id, to, reason); err != nil {
		return zero, err
	}

	wasOccupying := appt.Status.Occupying()
	appt.Status = to
	appt.CancellationReason = reason

	ev := s.eventFor(appt, actor)
	ev.Reason = reason
	if err := s.events.Enqueue(ctx, tx, topic, ev); err != nil {
		return zero, err
	}
	detail := map[string]string{"status": string(to)}
	if reason != "" {
		detail["reason"] = reason
	}
	if err := s.audit.Record(ctx, tx, action, actor.ID, actor.Role, id, detail); err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, err
	}

	if wasOccupying && !to.Occupying() {
		s.invalidate(ctx, appt.MasterID)
		if s.live != nil {
			s.live.Publish(ctx, LiveEvent{Kind: LiveSlotUpdate, MasterID: appt.MasterID})
		}
	}
	if s.live != nil {
		s.live.Publish(ctx, LiveEvent{
			Kind:          LiveStatusChange,
			MasterID:      appt.MasterID,
			AppointmentID: appt.ID,
			Status:        string(to),
		})
	}
	return appt, nil
}

// lockMaster serializes calendar writes per master. A handful of short
// retries absorbs momentary contention; sustained contention surfaces as
// ErrBusy and the client retries.
func (s *Service) lockMaster(ctx context.Context, tx pgx.Tx, masterID string) error {
	for attempt := 0; attempt < s.lockAttempts; attempt++ {
		ok, err := s.appointments.TryLockMaster(ctx, tx, masterID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.lockBackoff):
		}
	}
	return ErrBusy
}

// checkSlotFree verifies the candidate interval sits inside one of the
// master's work windows and misses every busy interval. The candidate is
// tested raw; existing occupying appointments carry the master's break.
func (s *Service) checkSlotFree(ctx context.Context, tx pgx.Tx, master model.Master, start, end time.Time, excludeID string) error {
	windows, err := s.dayWindows(ctx, master.ID, start)
	if err != nil {
		return err
	}
	contained := false
	for _, w := range windows {
		if !start.Before(w.Start) && !end.After(w.End) {
			contained = true
			break
		}
	}
	if !contained {
		return ErrSlotUnavailable
	}

	breakDur := time.Duration(master.BreakMinutes) * time.Minute
	booked, err := s.appointments.BookedIntervals(ctx, tx, master.ID, start.Add(-breakDur), end, excludeID)
	if err != nil {
		return err
	}
	blocks, err := s.schedule.ListBlockIntervals(ctx, master.ID, start, end)
	if err != nil {
		return err
	}
	busy := availability.BusySet(booked, breakDur, blockIntervals(blocks))

	candidate := availability.Interval{Start: start, End: end}
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return ErrSlotUnavailable
		}
	}
	return nil
}

// busySetRead builds the exclusion set for the slot calculator outside any
// transaction. The read window is widened backwards by the break so an
// appointment ending just before the window still shadows its first slots.
func (s *Service) busySetRead(ctx context.Context, masterID string, windowStart, windowEnd time.Time, breakDur time.Duration) ([]availability.Interval, error) {
	booked, err := s.appointments.BookedIntervalsRead(ctx, masterID, windowStart.Add(-breakDur), windowEnd)
	if err != nil {
		return nil, err
	}
	blocks, err := s.schedule.ListBlockIntervals(ctx, masterID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return availability.BusySet(booked, breakDur, blockIntervals(blocks)), nil
}

func (s *Service) eventFor(a model.Appointment, actor Actor) outbox.AppointmentEvent {
	return outbox.AppointmentEvent{
		AppointmentID: a.ID,
		MasterID:      a.MasterID,
		ServiceID:     a.ServiceID,
		ClientID:      a.ClientID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        a.Status,
		ActorRole:     actor.Role,
		OccurredAt:    s.now().UTC(),
	}
}

func (s *Service) afterCalendarChange(ctx context.Context, a model.Appointment) {
	s.invalidate(ctx, a.MasterID)
	if s.live != nil {
		s.live.Publish(ctx, LiveEvent{Kind: LiveSlotUpdate, MasterID: a.MasterID})
		s.live.Publish(ctx, LiveEvent{
			Kind:          LiveStatusChange,
			MasterID:      a.MasterID,
			AppointmentID: a.ID,
			Status:        string(a.Status),
		})
	}
}

func (s *Service) invalidate(ctx context.Context, masterID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, masterID); err != nil && s.logger != nil {
		s.logger.Warn("slot cache invalidation failed", "master_id", masterID, "err", err)
	}
}

func blockIntervals(blocks []model.BlockInterval) []availability.Interval {
	out := make([]availability.Interval, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, availability.Interval{Start: b.StartTime, End: b.EndTime})
	}
	return out
}

// isoWeekday maps Go's Sunday-first weekday to ISO-8601 (Monday is 1).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
