package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the SessionStore interface.
// Each user owns exactly one key; SET replaces it atomically and its TTL follows the session expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.SessionStore {
	return &RedisStore{
		client: client,
		prefix: "keygate:wallet-session:",
		now:    time.Now,
	}
}

// Get retrieves the user's session from Redis
func (s *RedisStore) Get(ctx context.Context, userID string) (*core.WalletSession, error) {
	raw, err := s.client.Get(ctx, s.prefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wallet session: %w", errors.Join(core.ErrStoreOperationFailed, err))
	}

	var session core.WalletSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode wallet session: %w", errors.Join(core.ErrStoreOperationFailed, err))
	}
	return &session, nil
}

// Set stores the session with a TTL matching its remaining lifetime
func (s *RedisStore) Set(ctx context.Context, userID string, session *core.WalletSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode wallet session: %w", err)
	}

	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		// Already expired: an empty slot is equivalent and keeps Redis tidy
		return s.Clear(ctx, userID)
	}

	if err := s.client.Set(ctx, s.prefix+userID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write wallet session: %w", errors.Join(core.ErrStoreOperationFailed, err))
	}
	return nil
}

// Clear deletes the user's session key
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.prefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to clear wallet session: %w", errors.Join(core.ErrStoreOperationFailed, err))
	}
	return nil
}
