package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/salonflow/backend/libs/db"
)

// Action names recorded in the audit trail.
const (
	ActionCreate       = "appointment.create"
	ActionConfirm      = "appointment.confirm"
	ActionReschedule   = "appointment.reschedule"
	ActionCancel       = "appointment.cancel"
	ActionCancelAdmin  = "appointment.cancel_admin"
	ActionComplete     = "appointment.complete"
	ActionDelete       = "appointment.delete"
	ActionBlockCreate  = "block.create"
	ActionBlockDelete  = "block.delete"
)

// Recorder appends immutable audit entries inside the caller's transaction.
type Recorder struct {
	pool *db.Pool
}

func NewRecorder(pool *db.Pool) *Recorder {
	return &Recorder{pool: pool}
}

func (r *Recorder) Record(ctx context.Context, tx pgx.Tx, action, actorID, actorRole, subjectID string, detail any) error {
	var payload []byte
	if detail != nil {
		var err error
		payload, err = json.Marshal(detail)
		if err != nil {
			return err
		}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_log (id, action, actor_id, actor_role, subject_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), action, actorID, actorRole, subjectID, payload)
	return err
}

// RecordDirect writes outside any transaction, for operations that do not
// touch appointment rows.
func (r *Recorder) RecordDirect(ctx context.Context, action, actorID, actorRole, subjectID string, detail any) error {
	var payload []byte
	if detail != nil {
		var err error
		payload, err = json.Marshal(detail)
		if err != nil {
			return err
		}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, actor_id, actor_role, subject_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), action, actorID, actorRole, subjectID, payload)
	return err
}
