package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channel = "booking.live"

// Event kinds pushed to connected admin dashboards.
const (
	KindSlotUpdate   = "slot-update"
	KindStatusChange = "appointment-status-change"
)

// Event is the wire form of a live update.
type Event struct {
	Kind          string `json:"kind"`
	MasterID      string `json:"master_id"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

// Hub fans live events out to SSE subscribers. Redis pub/sub carries events
// between service instances so a dashboard connected to one replica still
// sees changes made through another.
type Hub struct {
	rdb    *redis.Client
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub(rdb *redis.Client, logger *slog.Logger) *Hub {
	return &Hub{
		rdb:    rdb,
		logger: logger,
		subs:   map[chan Event]struct{}{},
	}
}

// Publish sends the event through Redis; the local fan-out happens when it
// comes back on the subscription.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := h.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		h.logger.Warn("live publish failed", "err", err)
	}
}

// Run consumes the Redis channel until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	sub := h.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn("live event decode failed", "err", err)
				continue
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub <- ev:
		default:
			// Slow subscriber, drop the event rather than block the hub.
		}
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the client disconnects.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}
