package rowcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of *redis.Client a RedisSlot needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisSlot keeps the entry under one key. TTL only bounds how long a
// forgotten entry lingers; freshness is decided by the stored date.
type RedisSlot struct {
	Client RedisClient
	Key    string
	TTL    time.Duration
}

// DefaultRedisKey is used when RedisSlot.Key is empty.
const DefaultRedisKey = "pricesync:extraction"

func (r RedisSlot) key() string {
	if r.Key == "" {
		return DefaultRedisKey
	}
	return r.Key
}

func (r RedisSlot) Load(ctx context.Context) (Entry, bool, error) {
	raw, err := r.Client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", r.key(), err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode %s: %w", r.key(), err)
	}
	return e, true, nil
}

func (r RedisSlot) Store(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, r.key(), data, r.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key(), err)
	}
	return nil
}
