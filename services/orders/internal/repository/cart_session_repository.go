package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CartSessionRepository maps anonymous cart tokens to pending order
// IDs. Sessions live in Redis with a sliding TTL so abandoned carts
// age out without a sweeper.
type CartSessionRepository interface {
	Lookup(ctx context.Context, cartToken string) (int64, error)
	Bind(ctx context.Context, cartToken string, orderID int64) error
	Touch(ctx context.Context, cartToken string) error
	Drop(ctx context.Context, cartToken string) error
}

// ErrNoSession is returned when a cart token is unknown or expired.
var ErrNoSession = errors.New("no cart session for token")

type cartSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartSessionRepository(client *redis.Client, ttl time.Duration) CartSessionRepository {
	return &cartSessionRepository{client: client, ttl: ttl}
}

func cartKey(cartToken string) string {
	return "cart:session:" + cartToken
}

func (r *cartSessionRepository) Lookup(ctx context.Context, cartToken string) (int64, error) {
	val, err := r.client.Get(ctx, cartKey(cartToken)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up cart session: %w", err)
	}

	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt cart session value %q: %w", val, err)
	}
	return orderID, nil
}

func (r *cartSessionRepository) Bind(ctx context.Context, cartToken string, orderID int64) error {
	return r.client.Set(ctx, cartKey(cartToken), strconv.FormatInt(orderID, 10), r.ttl).Err()
}

func (r *cartSessionRepository) Touch(ctx context.Context, cartToken string) error {
	return r.client.Expire(ctx, cartKey(cartToken), r.ttl).Err()
}

func (r *cartSessionRepository) Drop(ctx context.Context, cartToken string) error {
	return r.client.Del(ctx, cartKey(cartToken)).Err()
}

// RedisIdempotencyStore adapts the shared Redis client to the
// idempotency middleware.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}
