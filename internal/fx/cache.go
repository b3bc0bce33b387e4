package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache shares fetched rates across instances and render sessions via Redis.
// A cache miss is not an error; callers fall through to the provider.
type Cache struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

func (c *Cache) key(source, target string) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "fx"
	}
	return fmt.Sprintf("%s:rate:%s:%s", prefix, source, target)
}

// Get returns the cached rate for the pair and whether it was present.
func (c *Cache) Get(ctx context.Context, source, target string) (Rate, bool, error) {
	if c == nil || c.R == nil {
		return Rate{}, false, nil
	}
	data, err := c.R.Get(ctx, c.key(source, target)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Rate{}, false, nil
		}
		return Rate{}, false, err
	}
	var rate Rate
	if err := json.Unmarshal(data, &rate); err != nil {
		return Rate{}, false, err
	}
	return rate, true, nil
}

// Set stores the rate with the configured TTL.
func (c *Cache) Set(ctx context.Context, rate Rate) error {
	if c == nil || c.R == nil {
		return nil
	}
	data, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return c.R.Set(ctx, c.key(rate.Source, rate.Target), data, ttl).Err()
}
