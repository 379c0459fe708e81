package geocode

import (
	"context"
	"strings"
	"time"

	"backend-travelplanner/internal/logging"
	"backend-travelplanner/internal/metrics"
	"backend-travelplanner/internal/shared/geo"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Cache remembers resolved addresses in Redis. Redis errors never fail a
// lookup; the request falls through to the wrapped geocoder.
type Cache struct {
	next  Geocoder
	redis *redis.Client
	ttl   time.Duration
}

// NewCache returns next unchanged when rdb is nil.
func NewCache(next Geocoder, rdb *redis.Client, ttl time.Duration) Geocoder {
	if rdb == nil {
		return next
	}
	return &Cache{next: next, redis: rdb, ttl: ttl}
}

func (c *Cache) Geocode(ctx context.Context, address string) (geo.Point, error) {
	key := cacheKey(address)

	raw, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var p geo.Point
		if err := json.Unmarshal(raw, &p); err == nil {
			metrics.GeocodeRequests.WithLabelValues("cache_hit").Inc()
			return p, nil
		}
	} else if err != redis.Nil {
		logging.Warn().Err(err).Msg("geocode cache read failed")
	}

	p, err := c.next.Geocode(ctx, address)
	if err != nil {
		return geo.Point{}, err
	}

	if raw, err := json.Marshal(p); err == nil {
		if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			logging.Warn().Err(err).Msg("geocode cache write failed")
		}
	}
	return p, nil
}

func cacheKey(address string) string {
	return "geocode:" + strings.Join(strings.Fields(strings.ToLower(address)), " ")
}
