package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chif/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside returns the JSON value cached at key, or calls load and caches its
// result for ttl. Redis failures never fail the read: the value is loaded
// directly and the error only counted. A nil client always loads.
func Aside[T any](ctx context.Context, rdb *redis.Client, name, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if rdb == nil || ttl <= 0 {
		return load(ctx)
	}

	ctx, span := observability.StartCacheSpan(ctx, "aside")
	defer span.End()

	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			observability.CacheLookups.WithLabelValues(name, "hit").Inc()
			return v, nil
		}
		observability.CacheLookups.WithLabelValues(name, "error").Inc()
	case errors.Is(err, redis.Nil):
		observability.CacheLookups.WithLabelValues(name, "miss").Inc()
	default:
		observability.CacheLookups.WithLabelValues(name, "error").Inc()
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if data, err := json.Marshal(v); err == nil {
		if setErr := rdb.Set(ctx, key, data, ttl).Err(); setErr != nil {
			span.RecordError(setErr)
		}
	}
	return v, nil
}
