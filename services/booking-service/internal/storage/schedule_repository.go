package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salonflow/backend/libs/db"
	"github.com/salonflow/backend/services/booking-service/internal/model"
)

// ScheduleRepository owns masters, services, recurring work windows and
// one-off block intervals.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) CreateMaster(ctx context.Context, name string, breakMinutes int) (model.Master, error) {
	m := model.Master{
		ID:           uuid.NewString(),
		Name:         name,
		BreakMinutes: breakMinutes,
		IsActive:     true,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO masters (id, name, break_minutes, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING created_at
	`, m.ID, m.Name, m.BreakMinutes).Scan(&m.CreatedAt)
	return m, err
}

func (r *ScheduleRepository) GetMaster(ctx context.Context, id string) (model.Master, error) {
	var m model.Master
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, break_minutes, is_active, created_at
		FROM masters
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.BreakMinutes, &m.IsActive, &m.CreatedAt)
	return m, err
}

func (r *ScheduleRepository) ListMasters(ctx context.Context) ([]model.Master, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, break_minutes, is_active, created_at
		FROM masters
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Master
	for rows.Next() {
		var m model.Master
		if err := rows.Scan(&m.ID, &m.Name, &m.BreakMinutes, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ScheduleRepository) CreateService(ctx context.Context, name string, durationMinutes int, priceCents int64, currency string) (model.Service, error) {
	s := model.Service{
		ID:              uuid.NewString(),
		Name:            name,
		DurationMinutes: durationMinutes,
		PriceCents:      priceCents,
		Currency:        currency,
		IsActive:        true,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (id, name, duration_minutes, price_cents, currency, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING created_at
	`, s.ID, s.Name, s.DurationMinutes, s.PriceCents, s.Currency).Scan(&s.CreatedAt)
	return s, err
}

func (r *ScheduleRepository) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, price_cents, currency, is_active, created_at
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Currency, &s.IsActive, &s.CreatedAt)
	return s, err
}

func (r *ScheduleRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, duration_minutes, price_cents, currency, is_active, created_at
		FROM services
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.Currency, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ScheduleRepository) CreateWorkWindow(ctx context.Context, w model.WorkWindow) (model.WorkWindow, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO work_windows (id, master_id, weekday, start_minute, end_minute, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.MasterID, w.Weekday, w.StartMinute, w.EndMinute, w.IsActive)
	return w, err
}

func (r *ScheduleRepository) UpdateWorkWindow(ctx context.Context, w model.WorkWindow) (model.WorkWindow, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_windows
		SET weekday = $2, start_minute = $3, end_minute = $4, is_active = $5
		WHERE id = $1
	`, w.ID, w.Weekday, w.StartMinute, w.EndMinute, w.IsActive)
	if err != nil {
		return w, err
	}
	if tag.RowsAffected() == 0 {
		return w, pgx.ErrNoRows
	}
	return w, nil
}

func (r *ScheduleRepository) DeleteWorkWindow(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM work_windows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ActiveWorkWindows returns the active recurring windows for one weekday,
// ordered by start. A master may have several, or none at all.
func (r *ScheduleRepository) ActiveWorkWindows(ctx context.Context, masterID string, weekday int) ([]model.WorkWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, master_id, weekday, start_minute, end_minute, is_active
		FROM work_windows
		WHERE master_id = $1 AND weekday = $2 AND is_active
		ORDER BY start_minute
	`, masterID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkWindows(rows)
}

func (r *ScheduleRepository) ListWorkWindows(ctx context.Context, masterID string) ([]model.WorkWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, master_id, weekday, start_minute, end_minute, is_active
		FROM work_windows
		WHERE master_id = $1
		ORDER BY weekday, start_minute
	`, masterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkWindows(rows)
}

func scanWorkWindows(rows pgx.Rows) ([]model.WorkWindow, error) {
	var out []model.WorkWindow
	for rows.Next() {
		var w model.WorkWindow
		if err := rows.Scan(&w.ID, &w.MasterID, &w.Weekday, &w.StartMinute, &w.EndMinute, &w.IsActive); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateBlockInterval runs inside the caller's transaction so the overlap
// check against the booking ledger and the insert commit atomically.
func (r *ScheduleRepository) CreateBlockInterval(ctx context.Context, tx pgx.Tx, b model.BlockInterval) (model.BlockInterval, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO block_intervals (id, master_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, b.ID, b.MasterID, b.StartTime, b.EndTime, b.Reason).Scan(&b.CreatedAt)
	return b, err
}

func (r *ScheduleRepository) DeleteBlockInterval(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM block_intervals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListBlockIntervals returns blocks intersecting [from, to).
func (r *ScheduleRepository) ListBlockIntervals(ctx context.Context, masterID string, from, to time.Time) ([]model.BlockInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, master_id, start_time, end_time, reason, created_at
		FROM block_intervals
		WHERE master_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, masterID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlockInterval
	for rows.Next() {
		var b model.BlockInterval
		if err := rows.Scan(&b.ID, &b.MasterID, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
