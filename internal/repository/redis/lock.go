package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-service/internal/util"
)

const lockPrefix = "lock:"

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock already held")

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by someone else is never released by us.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`

// Locker is a single-instance Redis lease lock.
type Locker struct {
	client commander
}

func NewLocker(c commander) *Locker {
	return &Locker{client: c}
}

// Acquire takes the lock without waiting. The returned release is safe to
// call more than once.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockPrefix+key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's ctx may be cancelled by now.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.client.Eval(rctx, releaseScript, []string{lockPrefix + key}, token); err != nil {
			util.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
