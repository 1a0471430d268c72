package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/salonflow/backend/libs/auth"
	"github.com/salonflow/backend/services/booking-service/internal/audit"
	"github.com/salonflow/backend/services/booking-service/internal/availability"
	"github.com/salonflow/backend/services/booking-service/internal/model"
	"github.com/salonflow/backend/services/booking-service/internal/outbox"
	"github.com/salonflow/backend/services/booking-service/internal/pricing"
	"github.com/salonflow/backend/services/booking-service/internal/storage"
)

var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

// Exclusion constraint violation as pgx surfaces it.
var pgconnError23P01 = pgconn.PgError{Code: "23P01"}

func at(hour, min int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakeAppointments struct {
	byID      map[string]model.Appointment
	lockDeny  bool
	lastTx    *fakeTx
	lastList  storage.ListFilter
	insertErr error
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{byID: map[string]model.Appointment{}}
}

func (f *fakeAppointments) Begin(context.Context) (pgx.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

func (f *fakeAppointments) TryLockMaster(context.Context, pgx.Tx, string) (bool, error) {
	return !f.lockDeny, nil
}

func (f *fakeAppointments) Insert(_ context.Context, _ pgx.Tx, a model.Appointment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.byID[a.ID] = a
	return nil
}

func (f *fakeAppointments) Get(_ context.Context, id string) (model.Appointment, error) {
	a, ok := f.byID[id]
	if !ok {
		return model.Appointment{}, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeAppointments) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (model.Appointment, error) {
	return f.Get(ctx, id)
}

func (f *fakeAppointments) UpdateStatus(_ context.Context, _ pgx.Tx, id string, status model.Status, reason string) error {
	a := f.byID[id]
	a.Status = status
	a.CancellationReason = reason
	f.byID[id] = a
	return nil
}

func (f *fakeAppointments) Reschedule(_ context.Context, _ pgx.Tx, id string, start, end time.Time) error {
	a := f.byID[id]
	a.StartTime, a.EndTime, a.Status = start, end, model.StatusRescheduled
	f.byID[id] = a
	return nil
}

func (f *fakeAppointments) Delete(_ context.Context, _ pgx.Tx, id string) error {
	if _, ok := f.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeAppointments) BookedIntervals(_ context.Context, _ pgx.Tx, masterID string, from, to time.Time, excludeID string) ([]availability.Interval, error) {
	var out []availability.Interval
	for _, a := range f.byID {
		if a.MasterID != masterID || a.ID == excludeID || !a.Status.Occupying() {
			continue
		}
		if a.StartTime.Before(to) && from.Before(a.EndTime) {
			out = append(out, availability.Interval{Start: a.StartTime, End: a.EndTime})
		}
	}
	return out, nil
}

func (f *fakeAppointments) BookedIntervalsRead(ctx context.Context, masterID string, from, to time.Time) ([]availability.Interval, error) {
	return f.BookedIntervals(ctx, nil, masterID, from, to, "")
}

func (f *fakeAppointments) List(_ context.Context, filter storage.ListFilter) ([]model.Appointment, error) {
	f.lastList = filter
	var out []model.Appointment
	for _, a := range f.byID {
		if filter.ClientID != "" && a.ClientID != filter.ClientID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type fakeSchedule struct {
	master  model.Master
	service model.Service
	windows []model.WorkWindow
	blocks  []model.BlockInterval
}

func (f *fakeSchedule) GetMaster(_ context.Context, id string) (model.Master, error) {
	if id != f.master.ID {
		return model.Master{}, pgx.ErrNoRows
	}
	return f.master, nil
}

func (f *fakeSchedule) GetService(_ context.Context, id string) (model.Service, error) {
	if id != f.service.ID {
		return model.Service{}, pgx.ErrNoRows
	}
	return f.service, nil
}

func (f *fakeSchedule) ActiveWorkWindows(_ context.Context, _ string, weekday int) ([]model.WorkWindow, error) {
	var out []model.WorkWindow
	for _, w := range f.windows {
		if w.Weekday == weekday && w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeSchedule) ListBlockIntervals(_ context.Context, _ string, from, to time.Time) ([]model.BlockInterval, error) {
	var out []model.BlockInterval
	for _, b := range f.blocks {
		if b.StartTime.Before(to) && from.Before(b.EndTime) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSchedule) CreateBlockInterval(_ context.Context, _ pgx.Tx, b model.BlockInterval) (model.BlockInterval, error) {
	if b.ID == "" {
		b.ID = "blk-1"
	}
	f.blocks = append(f.blocks, b)
	return b, nil
}

func (f *fakeSchedule) DeleteBlockInterval(_ context.Context, id string) error {
	for i, b := range f.blocks {
		if b.ID == id {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type enqueued struct {
	topic string
	ev    outbox.AppointmentEvent
}

type fakeEvents struct{ events []enqueued }

func (f *fakeEvents) Enqueue(_ context.Context, _ pgx.Tx, topic string, ev outbox.AppointmentEvent) error {
	f.events = append(f.events, enqueued{topic: topic, ev: ev})
	return nil
}

type fakeAudit struct{ actions []string }

func (f *fakeAudit) Record(_ context.Context, _ pgx.Tx, action, _, _, _ string, _ any) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeAudit) RecordDirect(_ context.Context, action, _, _, _ string, _ any) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakeCache struct{ invalidations []string }

func (f *fakeCache) Get(context.Context, string, string, string) ([]time.Time, bool) {
	return nil, false
}
func (f *fakeCache) Set(context.Context, string, string, string, []time.Time) {}
func (f *fakeCache) Invalidate(_ context.Context, masterID string) error {
	f.invalidations = append(f.invalidations, masterID)
	return nil
}

type fakeLive struct{ events []LiveEvent }

func (f *fakeLive) Publish(_ context.Context, ev LiveEvent) {
	f.events = append(f.events, ev)
}

type fixture struct {
	svc    *Service
	appts  *fakeAppointments
	sched  *fakeSchedule
	events *fakeEvents
	audit  *fakeAudit
	cache  *fakeCache
	live   *fakeLive
}

// newFixture wires a salon with one master (15 minute break, Monday
// 09:00-12:00) and one 60 minute service.
func newFixture(now time.Time) *fixture {
	return newFixtureIn(now, time.UTC)
}

func newFixtureIn(now time.Time, loc *time.Location) *fixture {
	appts := newFakeAppointments()
	sched := &fakeSchedule{
		master:  model.Master{ID: "m1", Name: "Alice", BreakMinutes: 15, IsActive: true},
		service: model.Service{ID: "s1", Name: "Haircut", DurationMinutes: 60, PriceCents: 5000, Currency: "USD", IsActive: true},
		windows: []model.WorkWindow{
			{ID: "w1", MasterID: "m1", Weekday: 1, StartMinute: 540, EndMinute: 720, IsActive: true},
		},
	}
	events := &fakeEvents{}
	auditSink := &fakeAudit{}
	cache := &fakeCache{}
	liveHub := &fakeLive{}
	svc := NewService(Config{
		Appointments: appts,
		Schedule:     sched,
		Events:       events,
		Audit:        auditSink,
		Cache:        cache,
		Live:         liveHub,
		Pricing:      pricing.NewStaticProvider(),
		Location:     loc,
		Now:          func() time.Time { return now },
	})
	svc.lockBackoff = time.Millisecond
	return &fixture{svc: svc, appts: appts, sched: sched, events: events, audit: auditSink, cache: cache, live: liveHub}
}

var (
	client = Actor{ID: "c1", Role: auth.RoleClient}
	admin  = Actor{ID: "adm", Role: auth.RoleAdmin}
)

func TestCreateBooksFreeSlot(t *testing.T) {
	fx := newFixture(at(8, 0))

	appt, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if appt.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", appt.Status)
	}
	if !appt.EndTime.Equal(at(11, 0)) {
		t.Errorf("expected end 11:00, got %v", appt.EndTime)
	}
	if appt.PriceCents != 5000 || appt.Currency != "USD" {
		t.Errorf("expected catalog price captured, got %d %s", appt.PriceCents, appt.Currency)
	}
	if len(fx.events.events) != 1 || fx.events.events[0].topic != outbox.TopicAppointmentCreated {
		t.Errorf("expected one created event, got %+v", fx.events.events)
	}
	if len(fx.cache.invalidations) != 1 {
		t.Errorf("expected one cache invalidation, got %d", len(fx.cache.invalidations))
	}
	if !fx.appts.lastTx.committed {
		t.Error("expected transaction committed")
	}
}

func TestCreateRejectsOverlapAndBreakShadow(t *testing.T) {
	fx := newFixture(at(8, 0))
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	// Direct overlap.
	if _, err := fx.svc.Create(context.Background(), Actor{ID: "c2", Role: auth.RoleClient}, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("overlap: expected ErrSlotUnavailable, got %v", err)
	}

	// 11:00 falls inside the 15 minute break shadow ending 11:15.
	if _, err := fx.svc.Create(context.Background(), Actor{ID: "c2", Role: auth.RoleClient}, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(11, 0),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("break shadow: expected ErrSlotUnavailable, got %v", err)
	}

	// 09:00 touches the booking at 10:00 but does not overlap it.
	if _, err := fx.svc.Create(context.Background(), Actor{ID: "c2", Role: auth.RoleClient}, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(9, 0),
	}); err != nil {
		t.Errorf("expected 09:00 bookable, got %v", err)
	}
}

func TestCreateOutsideWorkWindow(t *testing.T) {
	fx := newFixture(at(8, 0))
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(13, 0),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable outside window, got %v", err)
	}

	// Tuesday has no work window at all.
	tuesday := at(10, 0).Add(24 * time.Hour)
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: tuesday,
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable on day off, got %v", err)
	}
}

func TestCreateRejectsBlockedInterval(t *testing.T) {
	fx := newFixture(at(8, 0))
	fx.sched.blocks = []model.BlockInterval{
		{ID: "b1", MasterID: "m1", StartTime: at(11, 0), EndTime: at(11, 30)},
	}
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(11, 0),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable over block, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture(at(8, 0))
	cases := []CreateRequest{
		{ServiceID: "s1", StartTime: at(10, 0)},
		{MasterID: "m1", StartTime: at(10, 0)},
		{MasterID: "m1", ServiceID: "s1"},
		{MasterID: "m1", ServiceID: "s1", StartTime: at(7, 0)}, // past
	}
	for i, req := range cases {
		if _, err := fx.svc.Create(context.Background(), client, req); !IsValidation(err) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}

	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "nope", ServiceID: "s1", StartTime: at(10, 0),
	}); !errors.Is(err, ErrMasterNotFound) {
		t.Errorf("expected ErrMasterNotFound, got %v", err)
	}
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "nope", StartTime: at(10, 0),
	}); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestCreateBusyWhenLockContended(t *testing.T) {
	fx := newFixture(at(8, 0))
	fx.appts.lockDeny = true
	fx.svc.lockAttempts = 2

	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	}); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy under contention, got %v", err)
	}
}

func TestCreateMapsExclusionConstraintToSlotUnavailable(t *testing.T) {
	fx := newFixture(at(8, 0))
	fx.appts.insertErr = &pgconnError23P01
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable from constraint, got %v", err)
	}
}

func TestConfirmLifecycle(t *testing.T) {
	fx := newFixture(at(8, 0))
	appt, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := fx.svc.Confirm(context.Background(), client, appt.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("client confirm: expected ErrForbidden, got %v", err)
	}

	confirmed, err := fx.svc.Confirm(context.Background(), admin, appt.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Errorf("expected confirmed, got %s", confirmed.Status)
	}

	// Confirming twice violates the transition table.
	if _, err := fx.svc.Confirm(context.Background(), admin, appt.ID); !IsInvalidTransition(err) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestCancelOwnership(t *testing.T) {
	fx := newFixture(at(8, 0))
	appt, _ := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})

	stranger := Actor{ID: "c2", Role: auth.RoleClient}
	if _, err := fx.svc.Cancel(context.Background(), stranger, appt.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for stranger, got %v", err)
	}

	before := len(fx.cache.invalidations)
	cancelled, err := fx.svc.Cancel(context.Background(), client, appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if len(fx.cache.invalidations) != before+1 {
		t.Error("cancel should free the slot and invalidate the cache")
	}

	if _, err := fx.svc.Cancel(context.Background(), client, cancelled.ID); !IsInvalidTransition(err) {
		t.Errorf("expected invalid transition from cancelled, got %v", err)
	}
}

func TestRescheduleEmitsPreviousInterval(t *testing.T) {
	fx := newFixture(at(8, 0))
	appt, _ := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})

	moved, err := fx.svc.Reschedule(context.Background(), client, appt.ID, at(9, 0))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Status != model.StatusRescheduled {
		t.Errorf("expected rescheduled, got %s", moved.Status)
	}
	if !moved.EndTime.Equal(at(10, 0)) {
		t.Errorf("duration should be preserved, got end %v", moved.EndTime)
	}

	last := fx.events.events[len(fx.events.events)-1]
	if last.topic != outbox.TopicAppointmentRescheduled {
		t.Fatalf("expected rescheduled event, got %s", last.topic)
	}
	if last.ev.PreviousStart == nil || !last.ev.PreviousStart.Equal(at(10, 0)) {
		t.Errorf("expected previous start 10:00, got %v", last.ev.PreviousStart)
	}

	// Rescheduling again is allowed.
	if _, err := fx.svc.Reschedule(context.Background(), client, appt.ID, at(11, 0)); err != nil {
		t.Errorf("second reschedule: %v", err)
	}
}

func TestRescheduleRejectsOccupiedTarget(t *testing.T) {
	fx := newFixture(at(8, 0))
	first, _ := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(9, 0),
	})
	second, _ := fx.svc.Create(context.Background(), Actor{ID: "c2", Role: auth.RoleClient}, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 30),
	})
	_ = first

	if _, err := fx.svc.Reschedule(context.Background(), Actor{ID: "c2", Role: auth.RoleClient}, second.ID, at(9, 30)); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}

	// Moving within its own old interval must not self-conflict.
	if _, err := fx.svc.Reschedule(context.Background(), Actor{ID: "c2", Role: auth.RoleClient}, second.ID, at(11, 0)); err != nil {
		t.Errorf("self-overlapping move: %v", err)
	}
}

func TestDeleteAdminOnly(t *testing.T) {
	fx := newFixture(at(8, 0))
	appt, _ := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})

	if err := fx.svc.Delete(context.Background(), client, appt.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for client delete, got %v", err)
	}
	if err := fx.svc.Delete(context.Background(), admin, appt.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := fx.svc.Get(context.Background(), admin, appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected gone after delete, got %v", err)
	}
	last := fx.events.events[len(fx.events.events)-1]
	if last.topic != outbox.TopicAppointmentDeleted {
		t.Errorf("expected deleted event, got %s", last.topic)
	}
}

func TestListPinsClientToOwnBookings(t *testing.T) {
	fx := newFixture(at(8, 0))
	_, _ = fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(9, 0),
	})

	if _, err := fx.svc.List(context.Background(), client, storage.ListFilter{ClientID: "someone-else"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if fx.appts.lastList.ClientID != client.ID {
		t.Errorf("client filter should be forced to own id, got %q", fx.appts.lastList.ClientID)
	}

	if _, err := fx.svc.List(context.Background(), admin, storage.ListFilter{ClientID: "c1"}); err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if fx.appts.lastList.ClientID != "c1" {
		t.Errorf("admin filter should pass through, got %q", fx.appts.lastList.ClientID)
	}
}

func TestSlotsWorkedExample(t *testing.T) {
	fx := newFixture(at(0, 0))

	slots, err := fx.svc.Slots(context.Background(), "m1", "s1", monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	want := []time.Time{at(9, 0), at(10, 0), at(11, 0)}
	assertTimes(t, slots, want)

	fx2 := newFixture(at(0, 0))
	fx2.appts.byID["a1"] = model.Appointment{
		ID: "a1", MasterID: "m1", ServiceID: "s1", ClientID: "c9",
		StartTime: at(10, 0), EndTime: at(11, 0), Status: model.StatusConfirmed,
	}
	slots, err = fx2.svc.Slots(context.Background(), "m1", "s1", monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	assertTimes(t, slots, []time.Time{at(9, 0)})
}

func TestSlotsSplitShift(t *testing.T) {
	fx := newFixture(at(0, 0))
	fx.sched.windows = append(fx.sched.windows, model.WorkWindow{
		ID: "w2", MasterID: "m1", Weekday: 1, StartMinute: 14 * 60, EndMinute: 16 * 60, IsActive: true,
	})

	slots, err := fx.svc.Slots(context.Background(), "m1", "s1", monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	assertTimes(t, slots, []time.Time{at(9, 0), at(10, 0), at(11, 0), at(14, 0), at(15, 0)})

	// The afternoon window accepts bookings too.
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(14, 0),
	}); err != nil {
		t.Errorf("booking in second window: %v", err)
	}

	// The gap between windows is not bookable.
	if _, err := fx.svc.Create(context.Background(), Actor{ID: "c2", Role: auth.RoleClient}, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(12, 30),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable between windows, got %v", err)
	}
}

func TestSlotsIgnoreInactiveWindows(t *testing.T) {
	fx := newFixture(at(0, 0))
	fx.sched.windows[0].IsActive = false

	slots, err := fx.svc.Slots(context.Background(), "m1", "s1", monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("inactive window should yield no slots, got %v", slots)
	}
}

func TestSlotsDayOff(t *testing.T) {
	fx := newFixture(at(0, 0))
	tuesday := monday.Add(24 * time.Hour)
	slots, err := fx.svc.Slots(context.Background(), "m1", "s1", tuesday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots on a day off, got %v", slots)
	}
}

func TestCreateBlockInvalidatesCache(t *testing.T) {
	fx := newFixture(at(8, 0))

	if _, err := fx.svc.CreateBlock(context.Background(), client, model.BlockInterval{
		MasterID: "m1", StartTime: at(11, 0), EndTime: at(11, 30),
	}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for client, got %v", err)
	}

	blk, err := fx.svc.CreateBlock(context.Background(), admin, model.BlockInterval{
		MasterID: "m1", StartTime: at(11, 0), EndTime: at(11, 30),
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}
	if len(fx.cache.invalidations) != 1 {
		t.Errorf("expected cache invalidation, got %d", len(fx.cache.invalidations))
	}

	if err := fx.svc.DeleteBlock(context.Background(), admin, "m1", blk.ID); err != nil {
		t.Fatalf("delete block: %v", err)
	}
	if len(fx.cache.invalidations) != 2 {
		t.Errorf("expected second invalidation, got %d", len(fx.cache.invalidations))
	}
}

func TestCompletedAppointmentKeepsSlotAndBreak(t *testing.T) {
	fx := newFixture(at(8, 0))
	fx.appts.byID["a1"] = model.Appointment{
		ID: "a1", MasterID: "m1", ServiceID: "s1", ClientID: "c9",
		StartTime: at(9, 0), EndTime: at(10, 0), Status: model.StatusCompleted,
	}

	// 10:05 sits inside the 15 minute break following the completed visit.
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 5),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable after completed visit, got %v", err)
	}

	// The completed interval and its break still shadow the slot grid.
	slots, err := fx.svc.Slots(context.Background(), "m1", "s1", monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	assertTimes(t, slots, []time.Time{at(11, 0)})
}

func TestCompleteKeepsSlotHeld(t *testing.T) {
	fx := newFixture(at(8, 0))
	appt, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.svc.Confirm(context.Background(), admin, appt.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	fx.live.events = nil
	invalidations := len(fx.cache.invalidations)

	if _, err := fx.svc.Complete(context.Background(), admin, appt.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	for _, ev := range fx.live.events {
		if ev.Kind == LiveSlotUpdate {
			t.Error("completion must not announce a freed slot")
		}
	}
	if len(fx.cache.invalidations) != invalidations {
		t.Error("completion must not invalidate cached slots")
	}
}

func TestCancelPublishesSlotUpdate(t *testing.T) {
	fx := newFixture(at(8, 0))
	appt, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fx.live.events = nil

	if _, err := fx.svc.Cancel(context.Background(), client, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	var sawSlot, sawStatus bool
	for _, ev := range fx.live.events {
		if ev.Kind == LiveSlotUpdate && ev.MasterID == "m1" {
			sawSlot = true
		}
		if ev.Kind == LiveStatusChange && ev.AppointmentID == appt.ID {
			sawStatus = true
		}
	}
	if !sawSlot {
		t.Error("cancellation frees a slot and must publish a slot update")
	}
	if !sawStatus {
		t.Error("expected a status change event")
	}
}

func TestAdminCancelCarriesReason(t *testing.T) {
	fx := newFixture(at(8, 0))
	appt, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const reason = "stylist out sick"
	cancelled, err := fx.svc.CancelByAdmin(context.Background(), admin, appt.ID, reason)
	if err != nil {
		t.Fatalf("cancel by admin: %v", err)
	}
	if cancelled.CancellationReason != reason {
		t.Errorf("expected reason on appointment, got %q", cancelled.CancellationReason)
	}
	if stored := fx.appts.byID[appt.ID]; stored.CancellationReason != reason {
		t.Errorf("reason must be persisted, got %q", stored.CancellationReason)
	}

	last := fx.events.events[len(fx.events.events)-1]
	if last.topic != outbox.TopicAppointmentCancelled {
		t.Fatalf("expected cancelled event, got %s", last.topic)
	}
	if last.ev.Reason != reason {
		t.Errorf("reason must travel with the event, got %q", last.ev.Reason)
	}

	lastAction := fx.audit.actions[len(fx.audit.actions)-1]
	if lastAction != audit.ActionCancelAdmin {
		t.Errorf("expected %s audit action, got %s", audit.ActionCancelAdmin, lastAction)
	}
}

func TestCreateBlockRejectedOverBooking(t *testing.T) {
	fx := newFixture(at(8, 0))
	if _, err := fx.svc.Create(context.Background(), client, CreateRequest{
		MasterID: "m1", ServiceID: "s1", StartTime: at(10, 0),
	}); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	if _, err := fx.svc.CreateBlock(context.Background(), admin, model.BlockInterval{
		MasterID: "m1", StartTime: at(10, 30), EndTime: at(11, 30),
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable over booking, got %v", err)
	}
	if len(fx.sched.blocks) != 0 {
		t.Errorf("rejected block must not be stored, got %d", len(fx.sched.blocks))
	}

	// Touching the booking's end is not an overlap.
	if _, err := fx.svc.CreateBlock(context.Background(), admin, model.BlockInterval{
		MasterID: "m1", StartTime: at(11, 0), EndTime: at(11, 30),
	}); err != nil {
		t.Errorf("adjacent block: %v", err)
	}
}

func TestSlotsKeepCalendarDayWestOfUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	fx := newFixtureIn(at(0, 0), loc)

	// The handler parses dates as UTC midnight; the salon clock runs five
	// hours behind. The Monday window must stay on Monday.
	slots, err := fx.svc.Slots(context.Background(), "m1", "s1", monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	local := time.Date(2026, time.March, 2, 0, 0, 0, 0, loc)
	assertTimes(t, slots, []time.Time{
		local.Add(9 * time.Hour),
		local.Add(10 * time.Hour),
		local.Add(11 * time.Hour),
	})
}

func assertTimes(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("slot %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
