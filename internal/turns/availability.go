package turns

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marianoklecha/turnos-core/pkg/logging"
)

const defaultAvailabilityTTL = 5 * time.Minute

// AvailabilityCache caches per-doctor open-date lookups in Redis. A nil
// cache disables caching and every lookup hits the backend.
type AvailabilityCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewAvailabilityCache builds a cache over redisClient. A nil client yields
// a nil cache, which is valid and means no caching.
func NewAvailabilityCache(redisClient *redis.Client, ttl time.Duration) *AvailabilityCache {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultAvailabilityTTL
	}
	return &AvailabilityCache{redis: redisClient, ttl: ttl}
}

func availabilityKey(doctorID string) string {
	return "turnos:availability:doctor:" + doctorID
}

// Get returns the cached availability verdict for a doctor, or ok=false on
// a miss.
func (c *AvailabilityCache) Get(ctx context.Context, doctorID string) (available, ok bool) {
	if c == nil {
		return false, false
	}
	data, err := c.redis.Get(ctx, availabilityKey(doctorID)).Bytes()
	if err != nil {
		return false, false
	}
	if err := json.Unmarshal(data, &available); err != nil {
		return false, false
	}
	return available, true
}

// Set stores the availability verdict for a doctor.
func (c *AvailabilityCache) Set(ctx context.Context, doctorID string, available bool) {
	if c == nil {
		return
	}
	data, err := json.Marshal(available)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, availabilityKey(doctorID), data, c.ttl).Err()
}

// DatesProvider is the slice of the turn service the checker needs.
type DatesProvider interface {
	AvailableDates(ctx context.Context, doctorID, accessToken string) ([]string, error)
}

// Checker resolves which doctors currently have at least one open date.
type Checker struct {
	dates  DatesProvider
	cache  *AvailabilityCache
	logger *logging.Logger
}

// NewChecker constructs an availability checker. cache may be nil.
func NewChecker(dates DatesProvider, cache *AvailabilityCache, logger *logging.Logger) *Checker {
	if dates == nil {
		panic("turns: dates provider required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{dates: dates, cache: cache, logger: logger.Named("turns.availability")}
}

// BuildAvailabilityMap returns doctorID -> has at least one open date. A
// failed lookup for one doctor marks that doctor unavailable instead of
// failing the whole map; only context cancellation aborts the sweep.
func (c *Checker) BuildAvailabilityMap(ctx context.Context, doctors []Doctor, accessToken string) (map[string]bool, error) {
	availability := make(map[string]bool, len(doctors))
	for _, doctor := range doctors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cached, ok := c.cache.Get(ctx, doctor.ID); ok {
			availability[doctor.ID] = cached
			continue
		}

		dates, err := c.dates.AvailableDates(ctx, doctor.ID, accessToken)
		if err != nil {
			c.logger.Warn("availability lookup failed, marking doctor unavailable",
				"doctor_id", doctor.ID, "error", err)
			availability[doctor.ID] = false
			continue
		}

		available := len(dates) > 0
		availability[doctor.ID] = available
		c.cache.Set(ctx, doctor.ID, available)
	}
	return availability, nil
}
