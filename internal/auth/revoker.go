package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers logged-out token ids until they expire.
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryRevoker keeps revoked ids in process memory.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, key)
		}
	}
	m.revoked[id] = until
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.revoked[id]
	return ok && exp.After(m.now()), nil
}

const redisKeyPrefix = "teamflow:revoked:"

// RedisRevoker shares revocations between server instances.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker connects to redisURL and pings it.
func NewRedisRevoker(ctx context.Context, redisURL string) (*RedisRevoker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRevoker{client: client}, nil
}

func (r *RedisRevoker) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, redisKeyPrefix+id, 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the redis connection.
func (r *RedisRevoker) Close() error {
	return r.client.Close()
}

// NewRevoker returns a RedisRevoker when redisURL is set and reachable, and a
// MemoryRevoker otherwise.
func NewRevoker(ctx context.Context, redisURL string, logger *slog.Logger) Revoker {
	if logger == nil {
		logger = slog.Default()
	}
	if redisURL == "" {
		logger.Info("redis url not provided, session revocations kept in memory")
		return NewMemoryRevoker()
	}
	r, err := NewRedisRevoker(ctx, redisURL)
	if err != nil {
		logger.Warn("redis unavailable, session revocations kept in memory", slog.String("error", err.Error()))
		return NewMemoryRevoker()
	}
	logger.Info("session revocations stored in redis")
	return r
}
