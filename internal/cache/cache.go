// Package cache keeps short-lived copies of product rows so hot product
// lookups skip the database. Entries are dropped after every committed stock
// mutation and expire on their own after the configured TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/engmostafamohamed/flash-sale-task/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "product:"
	DefaultTTL = 5 * time.Second
)

type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) key(productID string) string {
	return keyPrefix + productID
}

func (r *Redis) Get(ctx context.Context, productID string) (domain.Product, bool, error) {
	data, err := r.client.Get(ctx, r.key(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("redis get: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		// A corrupt entry is treated as a miss and removed.
		_ = r.client.Del(ctx, r.key(productID)).Err()
		return domain.Product{}, false, fmt.Errorf("redis unmarshal: %w", err)
	}
	return p, true, nil
}

func (r *Redis) Set(ctx context.Context, p domain.Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(p.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, r.key(id))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
