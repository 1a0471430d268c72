package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/salonflow/backend/libs/kafkax"
	"github.com/salonflow/backend/services/notification-service/internal/notify"
)

// Store is the persistence surface the consumer needs.
type Store interface {
	ClaimEvent(ctx context.Context, eventID, topic string) (bool, error)
	RecordNotification(ctx context.Context, n Notification) error
}

// Notification mirrors the storage record to keep this package free of a
// storage import in tests.
type Notification struct {
	AppointmentID string
	ClientID      string
	Channel       string
	Subject       string
	Body          string
	Status        string
	Error         string
}

// Topics the notifier listens on. Deleted events are consumed for the
// dedupe ledger but render no message.
var topics = []string{
	"booking.appointment.created.v1",
	"booking.appointment.confirmed.v1",
	"booking.appointment.rescheduled.v1",
	"booking.appointment.cancelled.v1",
	"booking.appointment.completed.v1",
}

// Consumer reads lifecycle events and fans each into the configured
// delivery channel. At-least-once from Kafka plus the inbox ledger gives
// effectively-once notifications.
type Consumer struct {
	brokers []string
	groupID string
	store   Store
	sender  notify.Sender
	channel string
	logger  *slog.Logger

	newReader func(topic string) *kafka.Reader
}

func New(brokers []string, groupID string, store Store, sender notify.Sender, channel string, logger *slog.Logger) *Consumer {
	c := &Consumer{
		brokers: brokers,
		groupID: groupID,
		store:   store,
		sender:  sender,
		channel: channel,
		logger:  logger,
	}
	c.newReader = func(topic string) *kafka.Reader {
		return kafkax.NewReader(brokers, groupID, topic)
	}
	return c
}

// Run starts one reader goroutine per topic and blocks until ctx ends.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, topic := range topics {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			c.consumeTopic(ctx, topic)
		}(topic)
	}
	wg.Wait()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string) {
	reader := c.newReader(topic)
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read failed", "topic", topic, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := c.Handle(ctx, topic, msg); err != nil {
			c.logger.Error("event handling failed", "topic", topic, "err", err)
		}
	}
}

// Handle processes one message. Errors after the inbox claim are logged and
// recorded, not retried; the claim already consumed the event.
func (c *Consumer) Handle(ctx context.Context, topic string, msg kafka.Message) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, kafkax.NewHeaderCarrier(&msg.Headers))

	ev, err := notify.DecodeEvent(msg.Value)
	if err != nil {
		// Poison message, drop it.
		c.logger.Warn("dropping undecodable event", "topic", topic, "err", err)
		return nil
	}

	fresh, err := c.store.ClaimEvent(ctx, ev.EventID, topic)
	if err != nil {
		return err
	}
	if !fresh {
		c.logger.Debug("duplicate event skipped", "event_id", ev.EventID)
		return nil
	}

	rendered, ok := notify.Build(topic, ev)
	if !ok {
		return nil
	}

	record := Notification{
		AppointmentID: ev.AppointmentID,
		ClientID:      ev.ClientID,
		Channel:       c.channel,
		Subject:       rendered.Subject,
		Body:          rendered.Body,
		Status:        "sent",
	}
	if err := c.sender.Send(ctx, ev.ClientID, rendered); err != nil {
		record.Status = "failed"
		record.Error = err.Error()
		c.logger.Error("notification send failed", "event_id", ev.EventID, "err", err)
	}
	return c.store.RecordNotification(ctx, record)
}
