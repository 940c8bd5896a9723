package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

// Connect initializes a Redis client from URL or host:port input.
// Supporting both formats keeps local/dev and container config paths simple.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

const idempotencyKeyPrefix = "purchase:idem:"

type idempotencyValue struct {
	RequestHash  string `json:"request_hash"`
	ResponseCode int    `json:"response_code,omitempty"`
	ResponseBody []byte `json:"response_body,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
}

// RedisIdempotencyStore keeps idempotency reservations in Redis so replays
// dedupe across instances. Keys expire with the record's TTL.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var val idempotencyValue
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		return nil, err
	}
	expiresAt := time.Unix(val.ExpiresAt, 0).UTC()
	if now.After(expiresAt) {
		return nil, nil
	}
	return &ports.IdempotencyRecord{
		Key:          key,
		RequestHash:  val.RequestHash,
		ResponseCode: val.ResponseCode,
		ResponseBody: val.ResponseBody,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	val, err := json.Marshal(idempotencyValue{RequestHash: requestHash, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return err
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, val, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConflict
	}
	return nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	redisKey := idempotencyKeyPrefix + key
	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	var val idempotencyValue
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		return err
	}
	val.ResponseCode = responseCode
	val.ResponseBody = responseBody
	updated, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey, updated, redis.KeepTTL).Err()
}
