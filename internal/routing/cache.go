package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-barrierfree/internal/shared/geo"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CachedProvider memoises provider paths in redis. Cache failures are logged
// and fall through to the provider.
type CachedProvider struct {
	next  Provider
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewCachedProvider returns next unchanged when there is no redis client.
func NewCachedProvider(next Provider, rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) Provider {
	if rdb == nil || ttl <= 0 {
		return next
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedProvider{next: next, redis: rdb, ttl: ttl, log: log}
}

func cacheKey(mode Mode, from, to geo.Point) string {
	// ~1 m precision keeps near-identical requests on one entry
	return fmt.Sprintf("barrierfree:route:%s:%.5f,%.5f;%.5f,%.5f", mode, from.Lat, from.Lng, to.Lat, to.Lng)
}

func (c *CachedProvider) Route(ctx context.Context, mode Mode, from, to geo.Point) (Path, error) {
	key := cacheKey(mode, from, to)
	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Path
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return p, nil
		}
		c.log.WithField("key", key).Warn("dropping undecodable cached route")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).Warn("route cache read failed")
	}

	path, err := c.next.Route(ctx, mode, from, to)
	if err != nil {
		return Path{}, err
	}
	if payload, err := json.Marshal(path); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.WithError(err).Warn("route cache write failed")
		}
	}
	return path, nil
}
