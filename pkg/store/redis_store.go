package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mandi/pkg/domain"
)

// Key names carried over from the browser-storage era so an operator can
// recognise the records.
const (
	redisListingsKey = "mm_listings"
	redisSessionsKey = "mm_chats"
	redisRoleKey     = "mm_user_mode"
)

const redisOpTimeout = 3 * time.Second

// RedisSnapshot persists the three records as plain Redis strings.
type RedisSnapshot struct {
	client *redis.Client
}

// NewRedisSnapshot connects to Redis and verifies the connection.
func NewRedisSnapshot(addr, password string) (*RedisSnapshot, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSnapshot{client: client}, nil
}

func (r *RedisSnapshot) LoadListings() ([]domain.Listing, error) {
	data, ok := r.read(redisListingsKey)
	if !ok {
		return []domain.Listing{}, nil
	}
	listings, ok := decodeListings(data)
	if !ok {
		slog.Warn("unreadable listings snapshot, starting empty", "key", redisListingsKey)
		return []domain.Listing{}, nil
	}
	return listings, nil
}

func (r *RedisSnapshot) SaveListings(listings []domain.Listing) error {
	data, err := encodeListings(listings)
	if err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}
	return r.write(redisListingsKey, data)
}

func (r *RedisSnapshot) LoadSessions() ([]domain.ChatSession, error) {
	data, ok := r.read(redisSessionsKey)
	if !ok {
		return []domain.ChatSession{}, nil
	}
	sessions, ok := decodeSessions(data)
	if !ok {
		slog.Warn("unreadable sessions snapshot, starting empty", "key", redisSessionsKey)
		return []domain.ChatSession{}, nil
	}
	return sessions, nil
}

func (r *RedisSnapshot) SaveSessions(sessions []domain.ChatSession) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return r.write(redisSessionsKey, data)
}

func (r *RedisSnapshot) LoadRole() (domain.Role, error) {
	data, ok := r.read(redisRoleKey)
	if !ok {
		return domain.DefaultRole, nil
	}
	role, ok := decodeRole(data)
	if !ok {
		slog.Warn("unreadable role snapshot, using default", "key", redisRoleKey)
		return domain.DefaultRole, nil
	}
	return role, nil
}

func (r *RedisSnapshot) SaveRole(role domain.Role) error {
	data, err := encodeRole(role)
	if err != nil {
		return fmt.Errorf("encode role: %w", err)
	}
	return r.write(redisRoleKey, data)
}

func (r *RedisSnapshot) read(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("read snapshot key", "key", key, "err", err)
		}
		return nil, false
	}
	return data, true
}

func (r *RedisSnapshot) write(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("write snapshot key %s: %w", key, err)
	}
	return nil
}
