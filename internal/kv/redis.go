package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/safar/go-storefront/internal/database"
)

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// RedisBackend stores each key as a hash holding the value and its version.
// Compare-and-set uses WATCH/MULTI on that hash.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(rdb *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func NewRedisClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: db})
}

func (r *RedisBackend) Get(ctx context.Context, key string) (Entry, error) {
	fields, err := r.rdb.HGetAll(ctx, r.prefix+key).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Entry{}, ErrNotFound
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parse version of %s: %w", key, err)
	}
	return Entry{Value: []byte(fields[fieldValue]), Version: version}, nil
}

func (r *RedisBackend) Version(ctx context.Context, key string) (int64, error) {
	version, err := r.rdb.HGet(ctx, r.prefix+key, fieldVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("hget %s: %w", key, err)
	}
	return version, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	k := r.prefix + key
	next := expectedVersion + 1

	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return fmt.Errorf("hget %s: %w", key, err)
		}
		if current != expectedVersion {
			return database.ErrOptimisticLockFailed
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldValue, value, fieldVersion, next)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, database.ErrOptimisticLockFailed
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}
