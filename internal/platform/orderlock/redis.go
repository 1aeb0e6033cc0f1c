package orderlock

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	rd "github.com/redis/go-redis/v9"
)

// releaseIfMatch deletes the lock only when its value still matches the
// holder's token, so an expired lock reacquired by another process is never
// deleted by the original holder.
const releaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

const (
	// DefaultTTL bounds how long a crashed holder can block an order.
	DefaultTTL = 30 * time.Second
	// DefaultPollInterval is the retry cadence while the lock is held elsewhere.
	DefaultPollInterval = 50 * time.Millisecond
)

// RedisLocker is a Locker backed by Redis SET NX, for deployments running
// more than one API instance against the same registry.
type RedisLocker struct {
	client       *rd.Client
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisLocker constructs a RedisLocker over an existing client.
func NewRedisLocker(client *rd.Client) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("orderlock: redis client is required")
	}
	return &RedisLocker{
		client:       client,
		ttl:          DefaultTTL,
		pollInterval: DefaultPollInterval,
	}, nil
}

func lockKey(orderID string) string {
	return "orderlock:" + orderID
}

// Acquire polls SET NX until the lock is obtained or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, orderID string) (func(), error) {
	key := lockKey(orderID)
	token := ulid.Make().String()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("orderlock: acquire %s: %w", orderID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = l.client.Eval(ctx, releaseIfMatch, []string{key}, token).Int()
	}, nil
}
