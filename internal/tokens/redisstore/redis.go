// Package redisstore keeps the session token in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"finboard/internal/tokens"
)

const keyPrefix = "finboard:"

// deleteIfScript deletes KEYS[1] when it holds ARGV[1], atomically.
var deleteIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Store struct {
	client *redis.Client
	key    string
}

// New connects to the Redis server at rawURL and checks it with a ping.
// Both "redis://host:port/db" and a bare "host:port" are accepted.
func New(ctx context.Context, rawURL string) (*Store, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		opt = &redis.Options{Addr: rawURL}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, key: keyPrefix + tokens.Key}
}

func (s *Store) Get(ctx context.Context) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get token: %w", err)
	}
	v = strings.TrimSpace(v)
	return v, v != "", nil
}

func (s *Store) Set(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, strings.TrimSpace(token), 0).Err(); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

func (s *Store) DeleteIf(ctx context.Context, token string) (bool, error) {
	n, err := deleteIfScript.Run(ctx, s.client, []string{s.key}, strings.TrimSpace(token)).Int()
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
