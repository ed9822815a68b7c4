package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "vehicle-feed:current"

// RedisStore shares the current feed between server replicas.
type RedisStore struct {
	client *redis.Client
	key    string
}

type redisDocument struct {
	Content     string `json:"content"`
	RunID       string `json:"run_id"`
	Items       int    `json:"items"`
	GeneratedAt int64  `json:"generated_at"`
}

func NewRedisStore(ctx context.Context, addr, password string, db int, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr, "key", key)

	return newRedisStore(client, key), nil
}

func newRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) Save(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(redisDocument{
		Content:     string(doc.Data),
		RunID:       doc.RunID,
		Items:       doc.Items,
		GeneratedAt: doc.GeneratedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal feed: %w", err)
	}

	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", s.key, err)
	}

	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", s.key, err)
	}

	var stored redisDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("Discarding unreadable feed in Redis", "key", s.key, "error", err)
		s.client.Del(ctx, s.key)
		return nil, nil
	}

	return &Document{
		Data:        []byte(stored.Content),
		RunID:       stored.RunID,
		Items:       stored.Items,
		GeneratedAt: time.Unix(stored.GeneratedAt, 0),
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
