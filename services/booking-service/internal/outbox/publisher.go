package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/salonflow/backend/libs/kafkax"
)

// Publisher drains the outbox table into Kafka. Rows stay unpublished until
// the broker acks, so a crash between write and ack re-delivers; consumers
// dedupe on event id.
type Publisher struct {
	repo     *Repository
	brokers  []string
	logger   *slog.Logger
	interval time.Duration
	batch    int

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewPublisher(repo *Repository, brokers []string, logger *slog.Logger) *Publisher {
	return &Publisher{
		repo:     repo,
		brokers:  brokers,
		logger:   logger,
		interval: time.Second,
		batch:    100,
		writers:  map[string]*kafka.Writer{},
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.closeWriters()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.logger.Error("outbox drain failed", "err", err)
			}
		}
	}
}

func (p *Publisher) drainOnce(ctx context.Context) error {
	for {
		n, err := p.publishBatch(ctx)
		if err != nil || n == 0 {
			return err
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context) (int, error) {
	tx, err := p.repo.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := p.repo.LockBatch(ctx, tx, p.batch)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	published := make([]string, 0, len(rows))
	for _, row := range rows {
		msg := kafka.Message{
			Key:   []byte(row.AggregateID),
			Value: row.Payload,
		}
		if row.Traceparent != "" {
			msg.Headers = append(msg.Headers, kafka.Header{Key: "traceparent", Value: []byte(row.Traceparent)})
		}
		if row.Tracestate != "" {
			msg.Headers = append(msg.Headers, kafka.Header{Key: "tracestate", Value: []byte(row.Tracestate)})
		}
		if err := p.writerFor(row.EventType).WriteMessages(ctx, msg); err != nil {
			p.logger.Warn("kafka publish failed, will retry", "event_type", row.EventType, "event_id", row.ID, "err", err)
			break
		}
		published = append(published, row.ID)
	}

	if len(published) == 0 {
		return 0, nil
	}
	if err := p.repo.MarkPublished(ctx, tx, published); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(published), nil
}

func (p *Publisher) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.writers[topic]
	if !ok {
		w = kafkax.NewWriter(p.brokers, topic)
		p.writers[topic] = w
	}
	return w
}

func (p *Publisher) closeWriters() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.logger.Warn("closing kafka writer", "topic", topic, "err", err)
		}
	}
}
