package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIndex stores gateway id mappings as plain string keys:
//
//	<prefix>customer:<customer id>         -> user id
//	<prefix>subscription:<subscription id> -> user id
//	<prefix>user:<user id>                 -> set of the keys above
//
// The per-user set lets Forget drop every mapping of a deleted user.
type RedisIndex struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisIndex returns an index writing under prefix. A zero ttl keeps keys forever.
func NewRedisIndex(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisIndex {
	if client == nil {
		panic("subscription: redis client is required")
	}
	return &RedisIndex{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisIndex) customerKey(id string) string     { return r.prefix + "customer:" + id }
func (r *RedisIndex) subscriptionKey(id string) string { return r.prefix + "subscription:" + id }
func (r *RedisIndex) userKey(userID int64) string {
	return r.prefix + "user:" + strconv.FormatInt(userID, 10)
}

func (r *RedisIndex) Remember(ctx context.Context, rec *Record) error {
	var keys []string
	if rec.CustomerID != "" {
		keys = append(keys, r.customerKey(rec.CustomerID))
	}
	if rec.SubscriptionID != "" {
		keys = append(keys, r.subscriptionKey(rec.SubscriptionID))
	}
	if len(keys) == 0 {
		return nil
	}

	userKey := r.userKey(rec.UserID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Set(ctx, key, rec.UserID, r.ttl)
			pipe.SAdd(ctx, userKey, key)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, userKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis index remember: %w", err)
	}
	return nil
}

func (r *RedisIndex) LookupCustomer(ctx context.Context, customerID string) (int64, error) {
	return r.lookup(ctx, r.customerKey(customerID))
}

func (r *RedisIndex) LookupSubscription(ctx context.Context, subscriptionID string) (int64, error) {
	return r.lookup(ctx, r.subscriptionKey(subscriptionID))
}

func (r *RedisIndex) lookup(ctx context.Context, key string) (int64, error) {
	userID, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrRecordNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis index lookup: %w", err)
	}
	return userID, nil
}

func (r *RedisIndex) Forget(ctx context.Context, rec *Record) error {
	userKey := r.userKey(rec.UserID)
	keys, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis index forget: %w", err)
	}
	if err := r.client.Del(ctx, append(keys, userKey)...).Err(); err != nil {
		return fmt.Errorf("redis index forget: %w", err)
	}
	return nil
}
