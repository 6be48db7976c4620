package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// RedisStore stores each document as a JSON string under prefix+path.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(path string) string { return s.prefix + path }

func (s *RedisStore) Get(ctx context.Context, path string, dst any) (bool, error) {
	if err := checkPath(path); err != nil {
		return false, err
	}
	raw, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	return true, decode(raw, dst)
}

func (s *RedisStore) Set(ctx context.Context, path string, v any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(path), buf, 0).Err()
}

// Update runs fn under WATCH and retries when another writer touched the key.
func (s *RedisStore) Update(ctx context.Context, path string, fn UpdateFunc) error {
	if err := checkPath(path); err != nil {
		return err
	}
	key := s.key(path)
	txf := func(tx *redis.Tx) error {
		var cur json.RawMessage
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			cur = raw
		case errors.Is(err, redis.Nil):
		default:
			return err
		}
		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, []byte(next), 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", path, ErrConflict)
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	return s.client.Del(ctx, s.key(path)).Err()
}
