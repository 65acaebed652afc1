package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/dialflow/dialflow/pkg/ports"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// Locker implements ports.DistributedLocker using Redis SET NX PX, so two
// replicas can never drive the same call at once.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// unlockScript releases the lock only if we still own it.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Lock polls with backoff until the lock is acquired or ctx ends. The
// returned UnlockFunc releases only our own value (Lua check), so an
// expired-and-reacquired lock is never stolen back.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	val := fmt.Sprintf("%d", time.Now().UnixNano())

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		success, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if success {
			return func(ctx context.Context) error {
				return l.client.Eval(ctx, unlockScript, []string{lockKey}, val).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, ctx.Err())
		case <-ticker.C:
		}
	}
}
