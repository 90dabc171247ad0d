package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisMissCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisMissCache(client redis.UniversalClient, prefix string) *RedisMissCache {
	if prefix == "" {
		prefix = "miss_cache"
	}
	return &RedisMissCache{client: client, prefix: prefix}
}

func (c *RedisMissCache) Seen(ctx context.Context, namespace, key string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	_, err := c.client.Get(ctx, c.entryKey(namespace, key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisMissCache) Remember(ctx context.Context, namespace, key string, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	entry := c.entryKey(namespace, key)
	index := c.indexKey(namespace)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, entry, "1", ttl)
	pipe.SAdd(ctx, index, entry)
	pipe.Expire(ctx, index, ttl+time.Minute)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisMissCache) Forget(ctx context.Context, namespace string) error {
	if c.client == nil {
		return nil
	}
	index := c.indexKey(namespace)
	entries, err := c.client.SMembers(ctx, index).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := c.client.TxPipeline()
	if len(entries) > 0 {
		pipe.Del(ctx, entries...)
	}
	pipe.Del(ctx, index)
	_, err = pipe.Exec(ctx)
	return err
}

// Keys are hashed so raw emails and usernames never land in redis.
func (c *RedisMissCache) entryKey(namespace, key string) string {
	sum := sha256.Sum256([]byte(normalizeAuthIdentity(key)))
	return fmt.Sprintf("%s:entry:%s:%s", c.prefix, namespace, hex.EncodeToString(sum[:]))
}

func (c *RedisMissCache) indexKey(namespace string) string {
	return fmt.Sprintf("%s:index:%s", c.prefix, namespace)
}
