package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/salonflow/backend/libs/db"
)

// Repository persists the inbox dedupe ledger and sent notifications.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// ClaimEvent inserts the event id into the inbox. Returns false when the
// event was already processed; the unique constraint is the dedupe.
func (r *Repository) ClaimEvent(ctx context.Context, eventID, topic string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox (event_id, topic) VALUES ($1, $2)
	`, eventID, topic)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Notification is one delivery attempt record.
type Notification struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	ClientID      string    `json:"client_id"`
	Channel       string    `json:"channel"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *Repository) RecordNotification(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, appointment_id, client_id, channel, subject, body, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.AppointmentID, n.ClientID, n.Channel, n.Subject, n.Body, n.Status, n.Error)
	return err
}

func (r *Repository) ListByClient(ctx context.Context, clientID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, client_id, channel, subject, body, status, error, created_at
		FROM notifications
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.AppointmentID, &n.ClientID, &n.Channel, &n.Subject, &n.Body, &n.Status, &n.Error, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
