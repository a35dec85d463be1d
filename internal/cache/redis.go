package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"statshub/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// layoutVersion is bumped whenever the encoded summary changes shape, so a
// deploy never decodes entries written by the previous release.
const layoutVersion = "v1"

// scanBatch bounds both the SCAN page size and each UNLINK call
const scanBatch = 200

// RedisCache keeps summaries under "<prefix>:v1:<key>"
type RedisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	c := newRedisCache(client, cfg.Prefix)

	log.Info().
		Str("address", cfg.Address).
		Str("namespace", c.namespace).
		Int("db", cfg.DB).
		Msg("Redis cache initialized successfully")

	return c, nil
}

func newRedisCache(client *redis.Client, prefix string) *RedisCache {
	namespace := layoutVersion
	if prefix != "" {
		namespace = prefix + ":" + layoutVersion
	}
	return &RedisCache{client: client, namespace: namespace}
}

func (c *RedisCache) formatKey(key string) string {
	return c.namespace + ":" + key
}

// formatPattern namespaces a glob; the namespace itself is matched literally
func (c *RedisCache) formatPattern(pattern string) string {
	return escapeGlob(c.namespace) + ":" + pattern
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\*?[]`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// observe logs one round trip at debug, or at error when err is set
func observe(op, key string, start time.Time, err error) *zerolog.Event {
	event := log.Debug()
	if err != nil {
		event = log.Error().Err(err)
	}
	return event.Str("op", op).Str("key", key).Dur("duration", time.Since(start))
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	k := c.formatKey(key)
	start := time.Now()

	value, err := c.client.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		observe("get", k, start, nil).Msg("Cache miss")
		return nil, ErrCacheMiss
	case err != nil:
		observe("get", k, start, err).Msg("Redis read failed")
		return nil, err
	}

	observe("get", k, start, nil).Int("size", len(value)).Msg("Cache hit")
	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k := c.formatKey(key)
	start := time.Now()

	err := c.client.Set(ctx, k, value, ttl).Err()
	observe("set", k, start, err).Int("size", len(value)).Dur("ttl", ttl).Msg("Cache write")
	return err
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	k := c.formatKey(key)
	start := time.Now()

	err := c.client.Unlink(ctx, k).Err()
	observe("unlink", k, start, err).Msg("Cache delete")
	return err
}

// DeleteByPattern walks matching keys with SCAN and unlinks them in batches.
// Keys written while the walk is running may survive it.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	p := c.formatPattern(pattern)
	start := time.Now()

	batch := make([]string, 0, scanBatch)
	removed := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Unlink(ctx, batch...).Err(); err != nil {
			return err
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, p, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				observe("unlink", p, start, err).Int("removed", removed).Msg("Cache pattern delete failed")
				return err
			}
		}
	}
	err := iter.Err()
	if err == nil {
		err = flush()
	}

	observe("scan", p, start, err).Int("removed", removed).Msg("Cache pattern delete")
	return err
}

func (c *RedisCache) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	observe("ping", c.namespace, start, err).Msg("Redis ping")
	return err
}

func (c *RedisCache) Close() error {
	log.Info().Str("namespace", c.namespace).Msg("Closing Redis cache connection")
	return c.client.Close()
}
