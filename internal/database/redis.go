package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// SessionStore holds short-lived kiosk state: which account is signed in at
// each machine, revoked tokens, scan rate limit counters and classified
// scans waiting for confirmation.
type SessionStore interface {
	SetActiveSession(ctx context.Context, machineID, identity string, ttl time.Duration) error
	ActiveSession(ctx context.Context, machineID string) (string, bool, error)
	ClearActiveSession(ctx context.Context, machineID string) error

	BlacklistToken(ctx context.Context, token string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)

	// AllowScan counts one scan for identity and reports whether it is
	// within max scans per window.
	AllowScan(ctx context.Context, identity string, max int, window time.Duration) (bool, error)
	// ReleaseScan gives back a scan counted by AllowScan that produced no
	// classification.
	ReleaseScan(ctx context.Context, identity string) error

	SavePendingScan(ctx context.Context, scanID string, payload []byte, ttl time.Duration) error
	// TakePendingScan returns and deletes a pending scan.
	TakePendingScan(ctx context.Context, scanID string) ([]byte, bool, error)
}

const keyPrefix = "ecovend:"

func sessionKey(machineID string) string {
	return fmt.Sprintf("%ssession:%s", keyPrefix, machineID)
}

func blacklistKey(token string) string {
	return fmt.Sprintf("%sblacklist:%s", keyPrefix, token)
}

func scanRateLimitKey(identity string) string {
	return fmt.Sprintf("%sscan:ratelimit:%s", keyPrefix, identity)
}

func pendingScanKey(scanID string) string {
	return fmt.Sprintf("%sscan:pending:%s", keyPrefix, scanID)
}

// InitRedis initializes Redis client with config. It returns nil when Redis
// is unreachable so callers can fall back to in-memory state.
func InitRedis(log zerolog.Logger) *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Redis connection failed, continuing without Redis")
		_ = rdb.Close()
		return nil
	}

	log.Info().Str("addr", addr).Msg("Redis connection established")
	return rdb
}

// RedisSessionStore is a SessionStore backed by Redis keys with TTLs.
type RedisSessionStore struct {
	redis *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{redis: client}
}

func (s *RedisSessionStore) SetActiveSession(ctx context.Context, machineID, identity string, ttl time.Duration) error {
	return s.redis.Set(ctx, sessionKey(machineID), identity, ttl).Err()
}

func (s *RedisSessionStore) ActiveSession(ctx context.Context, machineID string) (string, bool, error) {
	identity, err := s.redis.Get(ctx, sessionKey(machineID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return identity, true, nil
}

func (s *RedisSessionStore) ClearActiveSession(ctx context.Context, machineID string) error {
	return s.redis.Del(ctx, sessionKey(machineID)).Err()
}

func (s *RedisSessionStore) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	return s.redis.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

func (s *RedisSessionStore) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessionStore) AllowScan(ctx context.Context, identity string, max int, window time.Duration) (bool, error) {
	key := scanRateLimitKey(identity)
	count, err := s.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	if count >= max {
		return false, nil
	}

	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisSessionStore) ReleaseScan(ctx context.Context, identity string) error {
	key := scanRateLimitKey(identity)
	count, err := s.redis.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count <= 0 {
		return s.redis.Del(ctx, key).Err()
	}
	return nil
}

func (s *RedisSessionStore) SavePendingScan(ctx context.Context, scanID string, payload []byte, ttl time.Duration) error {
	return s.redis.Set(ctx, pendingScanKey(scanID), payload, ttl).Err()
}

func (s *RedisSessionStore) TakePendingScan(ctx context.Context, scanID string) ([]byte, bool, error) {
	key := pendingScanKey(scanID)
	payload, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	// Delete after use
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}
