package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotCache caches computed day availability under a per-master generation
// counter. Invalidation bumps the counter instead of scanning keys, so stale
// entries simply age out under their TTL.
type SlotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSlotCache(rdb *redis.Client, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SlotCache{rdb: rdb, ttl: ttl}
}

func (c *SlotCache) Get(ctx context.Context, masterID, serviceID, day string) ([]time.Time, bool) {
	key, err := c.key(ctx, masterID, serviceID, day)
	if err != nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []time.Time
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) Set(ctx context.Context, masterID, serviceID, day string, slots []time.Time) {
	key, err := c.key(ctx, masterID, serviceID, day)
	if err != nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, raw, c.ttl)
}

// Invalidate bumps the master's generation; every cached day for that master
// becomes unreachable in O(1).
func (c *SlotCache) Invalidate(ctx context.Context, masterID string) error {
	return c.rdb.Incr(ctx, genKey(masterID)).Err()
}

func (c *SlotCache) key(ctx context.Context, masterID, serviceID, day string) (string, error) {
	gen, err := c.rdb.Get(ctx, genKey(masterID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("slots:%s:%d:%s:%s", masterID, gen, serviceID, day), nil
}

func genKey(masterID string) string {
	return "slots:gen:" + masterID
}
