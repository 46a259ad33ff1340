// Package session persists per-user conversation state in Redis. Each user
// has at most one conversation record, keyed by Telegram user ID, with a TTL
// so abandoned purchase flows expire on their own.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// keyPrefix namespaces conversation keys in a shared Redis.
const keyPrefix = "conv:"

// Store reads and writes conversation records. Implemented by RedisStore.
type Store interface {
	// Get returns the user's conversation, or a fresh idle one when none is
	// stored (expired, never started, or explicitly reset).
	Get(ctx context.Context, userID int64) (types.Conversation, error)

	// Put overwrites the user's conversation and refreshes its TTL.
	Put(ctx context.Context, conv types.Conversation) error

	// Reset deletes the user's conversation, returning them to idle.
	Reset(ctx context.Context, userID int64) error
}

// RedisStore is the Redis-backed Store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewRedisStore connects to Redis and verifies connectivity with a ping.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password.Unmask(),
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    cfg.SessionTTL,
		logger: logger,
		nowFn:  time.Now,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used in tests.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger, nowFn: time.Now}
}

func key(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

// Get returns the stored conversation, or an idle one when nothing is stored.
func (s *RedisStore) Get(ctx context.Context, userID int64) (types.Conversation, error) {
	raw, err := s.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Conversation{
			UserID:    userID,
			State:     types.StateIdle,
			UpdatedAt: s.nowFn().UTC(),
		}, nil
	}
	if err != nil {
		return types.Conversation{}, types.NewAppError(
			types.ErrCodeInternalSession,
			"failed to load conversation state",
			err,
		)
	}

	var conv types.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		// A corrupt record is unrecoverable; drop it rather than wedge the
		// user's conversation forever.
		s.logger.WarnContext(ctx, "corrupt conversation record dropped",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		if delErr := s.client.Del(ctx, key(userID)).Err(); delErr != nil {
			return types.Conversation{}, types.NewAppError(
				types.ErrCodeInternalSession,
				"failed to drop corrupt conversation state",
				delErr,
			)
		}
		return types.Conversation{
			UserID:    userID,
			State:     types.StateIdle,
			UpdatedAt: s.nowFn().UTC(),
		}, nil
	}

	return conv, nil
}

// Put stores the conversation with a refreshed TTL.
func (s *RedisStore) Put(ctx context.Context, conv types.Conversation) error {
	conv.UpdatedAt = s.nowFn().UTC()

	raw, err := json.Marshal(conv)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalSession, "failed to encode conversation state", err)
	}

	if err := s.client.Set(ctx, key(conv.UserID), raw, s.ttl).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalSession, "failed to store conversation state", err)
	}
	return nil
}

// Reset deletes the conversation record. Deleting a missing record is fine.
func (s *RedisStore) Reset(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalSession, "failed to reset conversation state", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. Used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
