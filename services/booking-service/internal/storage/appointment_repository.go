package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/salonflow/backend/libs/db"
	"github.com/salonflow/backend/services/booking-service/internal/availability"
	"github.com/salonflow/backend/services/booking-service/internal/model"
)

// AppointmentRepository persists appointments. All writes run inside a
// transaction opened by the caller so the outbox row and audit entry commit
// atomically with the calendar change.
type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// TryLockMaster takes a transaction-scoped advisory lock serializing all
// calendar writes for one master. Released automatically at commit or
// rollback. Returns false when another writer holds it.
func (r *AppointmentRepository) TryLockMaster(ctx context.Context, tx pgx.Tx, masterID string) (bool, error) {
	var ok bool
	err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, masterID).Scan(&ok)
	return ok, err
}

func (r *AppointmentRepository) Insert(ctx context.Context, tx pgx.Tx, a model.Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, master_id, service_id, client_id, start_time, end_time, status, price_cents, currency, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.MasterID, a.ServiceID, a.ClientID, a.StartTime, a.EndTime, a.Status, a.PriceCents, a.Currency, a.Comment)
	return err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, appointmentSelect+` WHERE id = $1`, id))
}

// GetForUpdate row-locks the appointment for the duration of the transaction.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	return scanAppointment(tx.QueryRow(ctx, appointmentSelect+` WHERE id = $1 FOR UPDATE`, id))
}

// UpdateStatus applies a status-only transition. The reason is persisted for
// admin cancellations and empty for every other transition.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status, reason string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, cancellation_reason = $3, updated_at = now()
		WHERE id = $1
	`, id, status, reason)
	return err
}

// Reschedule moves the appointment and marks it rescheduled in one write so
// the exclusion constraint sees the final interval.
func (r *AppointmentRepository) Reschedule(ctx context.Context, tx pgx.Tx, id string, start, end time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET start_time = $2, end_time = $3, status = $4, updated_at = now()
		WHERE id = $1
	`, id, start, end, model.StatusRescheduled)
	return err
}

func (r *AppointmentRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// BookedIntervals returns the raw intervals of occupying appointments that
// intersect [from, to), inside the caller's transaction so the conflict
// re-check sees rows written by competing committed transactions.
func (r *AppointmentRepository) BookedIntervals(ctx context.Context, tx pgx.Tx, masterID string, from, to time.Time, excludeID string) ([]availability.Interval, error) {
	rows, err := tx.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE master_id = $1
		  AND status IN ('pending', 'confirmed', 'rescheduled', 'completed')
		  AND start_time < $3 AND end_time > $2
		  AND id <> $4
		ORDER BY start_time
	`, masterID, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

// BookedIntervalsRead is the lock-free variant used by the slot calculator.
func (r *AppointmentRepository) BookedIntervalsRead(ctx context.Context, masterID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE master_id = $1
		  AND status IN ('pending', 'confirmed', 'rescheduled', 'completed')
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, masterID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

// ListFilter narrows List output. Zero values mean "no filter".
type ListFilter struct {
	ClientID string
	MasterID string
	Status   model.Status
	From     time.Time
	To       time.Time
	Limit    int
}

func (r *AppointmentRepository) List(ctx context.Context, f ListFilter) ([]model.Appointment, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE ($1 = '' OR client_id = $1)
		  AND ($2 = '' OR master_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4::timestamptz IS NULL OR end_time > $4)
		  AND ($5::timestamptz IS NULL OR start_time < $5)
		ORDER BY start_time
		LIMIT $6
	`, f.ClientID, f.MasterID, string(f.Status), nullableTime(f.From), nullableTime(f.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DueForCompletion locks a batch of occupying appointments whose end time
// has passed, skipping rows another sweeper already holds.
func (r *AppointmentRepository) DueForCompletion(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]model.Appointment, error) {
	rows, err := tx.Query(ctx, appointmentSelect+`
		WHERE status IN ('confirmed', 'rescheduled')
		  AND end_time <= $1
		ORDER BY end_time
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const appointmentSelect = `
	SELECT id, master_id, service_id, client_id, start_time, end_time,
	       status, price_cents, currency, comment, cancellation_reason,
	       created_at, updated_at
	FROM appointments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID, &a.MasterID, &a.ServiceID, &a.ClientID, &a.StartTime, &a.EndTime,
		&a.Status, &a.PriceCents, &a.Currency, &a.Comment, &a.CancellationReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanIntervals(rows pgx.Rows) ([]availability.Interval, error) {
	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
