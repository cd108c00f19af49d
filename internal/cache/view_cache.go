package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// generationTTL bounds how long an invalidation counter outlives its view.
const generationTTL = 24 * time.Hour

var errStaleFill = errors.New("view invalidated during fill")

// ViewCache is a JSON-backed Redis cache for read projections of type T.
// Cache failures are logged and treated as misses. Every key carries a
// generation counter that Delete bumps, so a fill computed before an
// invalidation is discarded instead of resurrecting the old view.
type ViewCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewViewCache binds a cache to a key prefix. A zero ttl keeps keys forever.
func NewViewCache[T any](client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Get returns the cached value for key.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var v T
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("view cache read failed", slog.String("key", c.prefix+key), slog.Any("error", err))
		}
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("view cache decode failed", slog.String("key", c.prefix+key), slog.Any("error", err))
		return v, false
	}
	return v, true
}

// Set stores value under key.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("view cache encode failed", slog.String("key", c.prefix+key), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("view cache write failed", slog.String("key", c.prefix+key), slog.Any("error", err))
	}
}

// Generation reads the invalidation counter of key. Read it before loading
// the source record and pass it to Fill. ok is false when Redis is unreadable.
func (c *ViewCache[T]) Generation(ctx context.Context, key string) (int64, bool) {
	n, err := c.client.Get(ctx, c.generationKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logger.Warn("view cache generation read failed", slog.String("key", c.prefix+key), slog.Any("error", err))
		return 0, false
	}
	return n, true
}

// Fill stores value under key only while the generation still equals gen.
func (c *ViewCache[T]) Fill(ctx context.Context, key string, value T, gen int64) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("view cache encode failed", slog.String("key", c.prefix+key), slog.Any("error", err))
		return
	}
	genKey := c.generationKey(key)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.prefix+key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("view cache fill skipped", slog.String("key", c.prefix+key))
	default:
		c.logger.Warn("view cache write failed", slog.String("key", c.prefix+key), slog.Any("error", err))
	}
}

// Delete evicts keys and bumps their generations.
func (c *ViewCache[T]) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			genKey := c.generationKey(k)
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, generationTTL)
			pipe.Del(ctx, c.prefix+k)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("view cache delete failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}

func (c *ViewCache[T]) generationKey(key string) string {
	return c.prefix + "gen:" + key
}
