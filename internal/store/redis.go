package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/goto-eat-map/csv2geojson/pkg/geocode"
)

// RedisKeyPrefix namespaces geocode cache keys.
const RedisKeyPrefix = "csv2geojson:geocode:"

// RedisOptions configures the shared geocode cache.
type RedisOptions struct {
	// URL takes precedence over Addr/Password/DB when set (redis://...).
	URL      string
	Addr     string
	Password string
	DB       int
}

// RedisCache implements geocode.Cache on Redis so several workers share
// geocoder answers.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a client from opts and checks connectivity.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	var ro *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, eris.Wrap(err, "redis: parse url")
		}
		ro = parsed
	} else {
		ro = &redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	}

	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "redis: ping %s", ro.Addr)
	}
	return client, nil
}

// NewRedisCache wraps client. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements geocode.Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	data, err := c.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "redis: get geocode")
	}

	var r geocode.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, eris.Wrap(err, "redis: unmarshal geocode")
	}
	return &r, true, nil
}

// Set implements geocode.Cache.
func (c *RedisCache) Set(ctx context.Context, key string, result *geocode.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "redis: marshal geocode")
	}
	return eris.Wrap(c.client.Set(ctx, RedisKeyPrefix+key, data, c.ttl).Err(), "redis: set geocode")
}
