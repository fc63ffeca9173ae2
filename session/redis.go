// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys in a shared redis.
const DefaultRedisPrefix = "icwc:"

// RedisBackend keeps records in redis so several processes share a session.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, errors.WithMessage(err, "redis get")
}

func (b *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	return errors.WithMessage(b.client.Set(ctx, b.prefix+key, value, 0).Err(), "redis set")
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return errors.WithMessage(b.client.Del(ctx, b.prefix+key).Err(), "redis del")
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
