package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/backfield/gridiron/internal/domain/auction"
)

type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	RecentKey   string
	RecentLimit int64
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "companion:"
	}
	if c.RecentKey == "" {
		c.RecentKey = "recent:auctions"
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = 400
	}
	return c
}

var _ auction.Publisher = (*RecentCache)(nil)

// RecentCache keeps a capped list of the most recently observed auctions so
// readers can inspect the tail without a database round trip.
type RecentCache struct {
	rdb   *redis.Client
	key   string
	limit int64
	log   *zap.Logger
}

func NewRecentCache(cfg Config) *RecentCache {
	cfg = cfg.withDefaults()
	key := cfg.KeyPrefix + cfg.RecentKey
	return &RecentCache{
		rdb: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout,
		}),
		key:   key,
		limit: cfg.RecentLimit,
		log:   zap.L().With(zap.String("component", "redis.recent"), zap.String("key", key)),
	}
}

func (c *RecentCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RecentCache) Close() error { return c.rdb.Close() }

// Publish prepends the raw auction blobs and trims the list to the
// configured limit. Newest entries sit at index 0.
func (c *RecentCache) Publish(ctx context.Context, recs []auction.Record) error {
	if len(recs) == 0 {
		return nil
	}

	vals := make([]any, 0, len(recs))
	for _, rec := range recs {
		vals = append(vals, []byte(rec.Raw))
	}

	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, c.key, vals...)
	pipe.LTrim(ctx, c.key, 0, c.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	c.log.Debug("redis_published", zap.Int("count", len(recs)))
	return nil
}

// Recent returns up to n raw blobs, newest first.
func (c *RecentCache) Recent(ctx context.Context, n int64) ([]json.RawMessage, error) {
	if n <= 0 {
		n = c.limit
	}
	raw, err := c.rdb.LRange(ctx, c.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]json.RawMessage, 0, len(raw))
	for _, r := range raw {
		out = append(out, json.RawMessage(r))
	}
	return out, nil
}
