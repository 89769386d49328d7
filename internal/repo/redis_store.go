package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Conduit/internal/domain"
)

// RedisStore — хранилище документов в Redis.
//
// Коллекция — hash "conduit:<collection>", поле — ключ записи.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore подключается к Redis по URL и проверяет соединение.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) hash(collection string) string {
	return "conduit:" + collection
}

func (s *RedisStore) Upsert(ctx context.Context, collection string, key domain.StateKey, doc []byte) error {
	if err := s.client.HSet(ctx, s.hash(collection), key.String(), doc).Err(); err != nil {
		return fmt.Errorf("upsert %s: %w", collection, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, collection string, key domain.StateKey) ([]byte, error) {
	doc, err := s.client.HGet(ctx, s.hash(collection), key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", collection, err)
	}
	return doc, nil
}

func (s *RedisStore) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.client.HLen(ctx, s.hash(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return int(n), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
