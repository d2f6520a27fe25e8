// Package kv stores listing items in Redis, one hash per table.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

// ErrItemNotFound is returned by Get for a missing pk/sk pair.
var ErrItemNotFound = errors.New("item not found")

// RedisTable implements pipeline.TableWriter. Each table is a Redis hash whose
// fields are "pk#sk" and whose values are the JSON-encoded items.
type RedisTable struct {
	client *redis.Client
}

var _ pipeline.TableWriter = (*RedisTable)(nil)

// NewRedisTable connects to redisURL and verifies the connection.
func NewRedisTable(ctx context.Context, redisURL string) (*RedisTable, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisTable{client: client}, nil
}

// NewRedisTableFromClient wraps an existing client.
func NewRedisTableFromClient(client *redis.Client) *RedisTable {
	return &RedisTable{client: client}
}

// Field returns the hash field an item is stored under.
func Field(pk, sk string) string {
	return pk + "#" + sk
}

// Put upserts item into table.
func (t *RedisTable) Put(ctx context.Context, table string, item pipeline.Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}
	if err := t.client.HSet(ctx, table, Field(item.PartitionKey(), item.SortKey()), payload).Err(); err != nil {
		return fmt.Errorf("redis HSET %s failed: %w", table, err)
	}
	return nil
}

// Get reads back one item.
func (t *RedisTable) Get(ctx context.Context, table, pk, sk string) (pipeline.Item, error) {
	raw, err := t.client.HGet(ctx, table, Field(pk, sk)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET %s failed: %w", table, err)
	}
	var item pipeline.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return item, nil
}

// Close releases the underlying client.
func (t *RedisTable) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
