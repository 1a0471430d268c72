package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/salonflow/backend/services/booking-service/internal/booking"
	"github.com/salonflow/backend/services/booking-service/internal/model"
)

// Source finds appointments whose end time has passed.
type Source interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	DueForCompletion(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]model.Appointment, error)
}

// Completer applies the completed transition with full event and audit
// plumbing.
type Completer interface {
	Complete(ctx context.Context, actor booking.Actor, id string) (model.Appointment, error)
}

// Sweeper periodically moves confirmed and rescheduled appointments whose
// end time has passed into completed. SKIP LOCKED on the collection query
// keeps concurrent replicas off the same batch; a transition that raced to
// done elsewhere is skipped, not an error.
type Sweeper struct {
	source    Source
	completer Completer
	logger    *slog.Logger
	interval  time.Duration
	batch     int
	now       func() time.Time
}

func New(source Source, completer Completer, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		source:    source,
		completer: completer,
		logger:    logger,
		interval:  interval,
		batch:     50,
		now:       time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("completion sweep failed", "err", err)
			} else if n > 0 {
				s.logger.Info("completion sweep", "completed", n)
			}
		}
	}
}

// SweepOnce collects one due batch and completes each appointment in its
// own transaction. The collection locks are released before completing so
// the per-appointment row lock cannot deadlock against them.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.collectDue(ctx)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, id := range ids {
		if _, err := s.completer.Complete(ctx, booking.SystemActor, id); err != nil {
			if booking.IsInvalidTransition(err) {
				// Another actor moved it first.
				continue
			}
			s.logger.Warn("sweep complete failed", "appointment_id", id, "err", err)
			continue
		}
		completed++
	}
	return completed, nil
}

func (s *Sweeper) collectDue(ctx context.Context) ([]string, error) {
	tx, err := s.source.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	due, err := s.source.DueForCompletion(ctx, tx, s.now(), s.batch)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(due))
	for _, a := range due {
		ids = append(ids, a.ID)
	}
	return ids, nil
}
