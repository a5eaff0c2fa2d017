// Package cache is a read-through JSON cache on Redis that keeps entries
// around past their freshness window so callers can fall back to them when
// the upstream source fails.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key holds no entry.
var ErrMiss = errors.New("cache miss")

type entry struct {
	FreshUntil time.Time       `json:"fresh_until"`
	Value      json.RawMessage `json:"value"`
}

// Store wraps a redis client. A nil client turns every call into a miss.
type Store struct {
	client   *redis.Client
	staleTTL time.Duration
	now      func() time.Time
}

// New creates a Store. staleTTL is how long an entry survives after it stops being fresh.
func New(client *redis.Client, staleTTL time.Duration) *Store {
	return &Store{
		client:   client,
		staleTTL: staleTTL,
		now:      time.Now,
	}
}

// Get decodes the entry under key into dest and reports whether it is still fresh.
func (s *Store) Get(ctx context.Context, key string, dest any) (fresh bool, err error) {
	if s == nil || s.client == nil {
		return false, ErrMiss
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, ErrMiss
	}
	if err != nil {
		return false, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false, err
	}
	if err := json.Unmarshal(e.Value, dest); err != nil {
		return false, err
	}
	return s.now().Before(e.FreshUntil), nil
}

// Set stores v as fresh for ttl and keeps it readable for ttl plus the stale window.
func (s *Store) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(entry{FreshUntil: s.now().Add(ttl), Value: value})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, ttl+s.staleTTL).Err()
}

// Fetch returns a fresh cached value when present, otherwise calls load and
// caches its result. When load fails a stale entry is served instead; the
// load error is returned only when there is nothing cached at all.
func (s *Store) Fetch(ctx context.Context, key string, dest any, ttl time.Duration, load func(ctx context.Context) (any, error)) error {
	fresh, err := s.Get(ctx, key, dest)
	haveStale := err == nil
	if haveStale && fresh {
		return nil
	}
	if err != nil && !errors.Is(err, ErrMiss) {
		logger.Warn("Cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	v, loadErr := load(ctx)
	if loadErr != nil {
		if haveStale {
			logger.Warn("Serving stale cache entry", map[string]interface{}{
				"key":   key,
				"error": loadErr.Error(),
			})
			return nil
		}
		return loadErr
	}

	// round-trip through JSON so dest matches what a cache hit would produce
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if haveStale {
		// drop the stale decode; Unmarshal merges into maps
		rv := reflect.ValueOf(dest).Elem()
		rv.Set(reflect.Zero(rv.Type()))
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return err
	}

	if err := s.Set(ctx, key, v, ttl); err != nil {
		logger.Warn("Cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	return nil
}
