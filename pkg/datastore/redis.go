package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the keys written by RedisStore.
const DefaultRedisPrefix = "chaoskit:"

// RedisStore is a Store backed by Redis. Each entity is a JSON string and each
// kind is a set of entity keys.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis connects to addr and checks the connection.
func OpenRedis(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) entityKey(key string) string { return s.prefix + "entity:" + key }
func (s *RedisStore) kindKey(kind string) string  { return s.prefix + "kind:" + kind }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entity, error) {
	raw, err := s.client.Get(ctx, s.entityKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSuchEntity
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entity %q: %w", key, err)
	}
	return &e, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, e *Entity) (string, error) {
	if err := validate(e); err != nil {
		return "", err
	}
	stored := e.Clone()
	if stored.Key == "" {
		stored.Key = uuid.NewString()
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode entity: %w", err)
	}

	prev, err := s.Get(ctx, stored.Key)
	if err != nil && !errors.Is(err, ErrNoSuchEntity) {
		return "", err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil && prev.Kind != stored.Kind {
			pipe.SRem(ctx, s.kindKey(prev.Kind), stored.Key)
		}
		pipe.Set(ctx, s.entityKey(stored.Key), raw, 0)
		pipe.SAdd(ctx, s.kindKey(stored.Kind), stored.Key)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to put entity: %w", err)
	}
	return stored.Key, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	e, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.entityKey(key))
		pipe.SRem(ctx, s.kindKey(e.Kind), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, kind string) ([]*Entity, error) {
	keys, err := s.client.SMembers(ctx, s.kindKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.entityKey(k)
	}
	vals, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	out := make([]*Entity, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		var e Entity
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("failed to decode entity %q: %w", keys[i], err)
		}
		out = append(out, &e)
	}
	return out, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
