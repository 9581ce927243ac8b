package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// BatchCache stores upstream batches so repeated single-player loads skip the network.
type BatchCache interface {
	Get(ctx context.Context, category string, amount int) ([]Question, error)
	Set(ctx context.Context, category string, amount int, qs []Question) error
}

// Cache is the Redis-backed BatchCache.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ BatchCache = (*Cache)(nil)

func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(category string, amount int) string {
	if category == "" {
		category = "any"
	}
	return strings.Join([]string{"questionbatch", strings.ToLower(category), fmt.Sprint(amount)}, ":")
}

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, category string, amount int) ([]Question, error) {
	data, err := c.client.Get(ctx, cacheKey(category, amount)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (c *Cache) Set(ctx context.Context, category string, amount int, qs []Question) error {
	data, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(category, amount), data, c.ttl).Err()
}
