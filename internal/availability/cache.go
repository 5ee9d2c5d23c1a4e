package availability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slotline/booking-platform/pkg/logging"
)

// SlotCache memoizes availability results for a short TTL. Slot reads are
// stale-tolerant, so serving a response computed a few seconds ago is fine.
// A nil cache (or nil redis client) disables caching entirely.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewSlotCache creates a redis-backed slot cache. Returns nil when no client
// is configured so call sites can stay unconditional.
func NewSlotCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *SlotCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached result for the query, if present.
func (c *SlotCache) Get(ctx context.Context, q Query) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, cacheKey(q)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("slot cache read failed", "error", err)
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set stores a computed result. Failures are logged and swallowed; the cache
// is an optimization, never a dependency.
func (c *SlotCache) Set(ctx context.Context, q Query, result *Result) {
	if c == nil || result == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(q), data, c.ttl).Err(); err != nil {
		c.logger.Warn("slot cache write failed", "error", err)
	}
}

// cacheKey hashes the normalized query. Filter keys are sorted so equal
// queries always map to the same key.
func cacheKey(q Query) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%d|%d|%t|%d|%s|%s|%d|%d|%s",
		q.Table, q.StartField, q.EndField,
		q.SlotMinutes, q.BufferMinutes, q.Limit,
		q.ExcludeWeekends, q.TZOffsetMinutes,
		q.WorkdayStart, q.WorkdayEnd,
		q.RangeStart.UnixMilli(), q.RangeEnd.UnixMilli(),
		q.StatusField,
	)
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, q.Filters[k])
	}
	for _, s := range q.ExcludeStatuses {
		fmt.Fprintf(h, "|!%s", s)
	}
	return "slots:" + hex.EncodeToString(h.Sum(nil))
}
