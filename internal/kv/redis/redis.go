package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis"

	"budgetbook/internal/kv"
)

// Options configures the Redis connection. Prefix is prepended to every key
// so several ledgers can share one database.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps each snapshot as a plain string value.
type Store struct {
	client *redis.Client
	prefix string
}

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Reviser = (*Store)(nil)
)

func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("missing REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// revKey holds the write counter of k next to its value.
func (s *Store) revKey(k string) string {
	return s.prefix + k + ":rev"
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.WithContext(ctx).Get(s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores the value and bumps its write counter in one transaction.
func (s *Store) Set(ctx context.Context, key, value string) error {
	pipe := s.client.WithContext(ctx).TxPipeline()
	pipe.Set(s.key(key), value, 0)
	pipe.Incr(s.revKey(key))
	if _, err := pipe.Exec(); err != nil {
		slog.WarnContext(ctx, "Unable to write snapshot to redis", "key", s.key(key), "error", err)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Revision returns how many times key has been written, 0 if never.
func (s *Store) Revision(ctx context.Context, key string) (int64, error) {
	rev, err := s.client.WithContext(ctx).Get(s.revKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis revision of %s: %w", key, err)
	}
	return rev, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
