package presence

import (
	"context"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a user stays "online" after their last request.
const DefaultTTL = 60 * time.Second

// Store tracks which users are currently online. A user is online while a
// TTL key refreshed by their authenticated traffic is alive.
type Store interface {
	Heartbeat(ctx context.Context, userID int) error
	IsOnline(ctx context.Context, userID int) (bool, error)
	Close() error
}

// NewStore builds a Redis-backed store or a noop store when Redis is disabled.
func NewStore(addr, password string, db int, ttl time.Duration) Store {
	if addr == "" {
		log.Printf("presence disabled, using noop: empty redis addr")
		return noopStore{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("presence disabled, using noop: %v", err)
		_ = client.Close()
		return noopStore{}
	}

	log.Printf("presence store connected addr=%s", addr)
	return &redisStore{client: client, ttl: ttl}
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func presenceKey(userID int) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// Heartbeat refreshes the user's online key.
func (s *redisStore) Heartbeat(ctx context.Context, userID int) error {
	return s.client.Set(ctx, presenceKey(userID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}

// IsOnline reports whether the user's key is still alive.
func (s *redisStore) IsOnline(ctx context.Context, userID int) (bool, error) {
	n, err := s.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

type noopStore struct{}

func (noopStore) Heartbeat(ctx context.Context, userID int) error { return nil }

func (noopStore) IsOnline(ctx context.Context, userID int) (bool, error) { return false, nil }

func (noopStore) Close() error { return nil }
