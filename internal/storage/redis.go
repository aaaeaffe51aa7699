package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// RedisStore keeps each record as a JSON string value:
//
//	<prefix>:history:<user>_slot_<n>
//	<prefix>:diary:<user>_slot_<n>
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewRedisStoreFromClient(client, opts.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "confidant"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) historyKey(userID int64, slot int) string {
	return s.prefix + ":history:" + slotKey(userID, slot)
}

func (s *RedisStore) diaryKey(userID int64, slot int) string {
	return s.prefix + ":diary:" + slotKey(userID, slot)
}

func (s *RedisStore) LoadHistory(ctx context.Context, userID int64, slot int) ([]schema.Message, bool, error) {
	var history []schema.Message
	found, err := s.get(ctx, s.historyKey(userID, slot), &history)
	if err != nil {
		return nil, found, fmt.Errorf("load history %s: %w", slotKey(userID, slot), err)
	}
	return history, found, nil
}

func (s *RedisStore) SaveHistory(ctx context.Context, userID int64, slot int, history []schema.Message) error {
	if history == nil {
		history = []schema.Message{}
	}
	return s.set(ctx, s.historyKey(userID, slot), history)
}

func (s *RedisStore) LoadDiary(ctx context.Context, userID int64, slot int) ([]string, error) {
	var entries []string
	if _, err := s.get(ctx, s.diaryKey(userID, slot), &entries); err != nil {
		return nil, fmt.Errorf("load diary %s: %w", slotKey(userID, slot), err)
	}
	return entries, nil
}

func (s *RedisStore) SaveDiary(ctx context.Context, userID int64, slot int, entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	return s.set(ctx, s.diaryKey(userID, slot), entries)
}

func (s *RedisStore) DeleteSlot(ctx context.Context, userID int64, slot int) error {
	return s.client.Del(ctx, s.historyKey(userID, slot), s.diaryKey(userID, slot)).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (s *RedisStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
