package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salonflow/backend/libs/db"
	libotel "github.com/salonflow/backend/libs/otel"
)

// Row is a pending outbox entry.
type Row struct {
	ID           string
	EventType    string
	AggregateID  string
	Payload      []byte
	Traceparent  string
	Tracestate   string
	CreatedAt    time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enqueue writes the event into the outbox inside the caller's transaction,
// capturing the active trace context so the publisher can link spans across
// the broker.
func (r *Repository) Enqueue(ctx context.Context, tx pgx.Tx, eventType string, ev AppointmentEvent) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	traceparent, tracestate := libotel.InjectTraceContext(ctx)
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (id, event_type, aggregate_id, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.EventID, eventType, ev.AppointmentID, payload, traceparent, tracestate)
	return err
}

// LockBatch claims a batch of unpublished rows, skipping rows held by a
// concurrent publisher instance.
func (r *Repository) LockBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Row, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, traceparent, tracestate, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.EventType, &row.AggregateID, &row.Payload, &row.Traceparent, &row.Tracestate, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox SET published_at = now() WHERE id = ANY($1)
	`, ids)
	return err
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}
