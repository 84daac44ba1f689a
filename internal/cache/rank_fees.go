package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const rankFeesKey = "clinic:rank_fees"

// RankFeeCache keeps the rank fee table in a redis hash.
type RankFeeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankFeeCache(client *redis.Client, ttl time.Duration) *RankFeeCache {
	return &RankFeeCache{client: client, ttl: ttl}
}

// NewClient connects to redis and pings it.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// GetFees returns the cached table; ok is false on a miss.
func (c *RankFeeCache) GetFees(ctx context.Context) (map[string]decimal.Decimal, bool, error) {
	raw, err := c.client.HGetAll(ctx, rankFeesKey).Result()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	fees := make(map[string]decimal.Decimal, len(raw))
	for rank, value := range raw {
		fee, err := decimal.NewFromString(value)
		if err != nil {
			return nil, false, fmt.Errorf("cached fee for %s: %w", rank, err)
		}
		fees[rank] = fee
	}
	return fees, true, nil
}

// SetFees replaces the cached table.
func (c *RankFeeCache) SetFees(ctx context.Context, fees map[string]decimal.Decimal) error {
	if len(fees) == 0 {
		return c.Invalidate(ctx)
	}
	values := make(map[string]interface{}, len(fees))
	for rank, fee := range fees {
		values[rank] = fee.String()
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rankFeesKey)
		pipe.HSet(ctx, rankFeesKey, values)
		if c.ttl > 0 {
			pipe.Expire(ctx, rankFeesKey, c.ttl)
		}
		return nil
	})
	return err
}

func (c *RankFeeCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, rankFeesKey).Err()
}
