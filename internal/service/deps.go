package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"booking-service/internal/hashing"
	"booking-service/internal/models"
	redisrepo "booking-service/internal/repository/redis"
	"booking-service/internal/token"
)

// Locker is satisfied by the Redis lease lock and the in-process striped lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type RateLimiter interface {
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error)
}

type OTPHasher interface {
	HashOTP(otp string) (*hashing.HashResult, error)
	VerifyOTP(otp string, hashResult *hashing.HashResult) (bool, error)
}

type FieldEncryptor interface {
	EncryptField(ctx context.Context, plaintext, purpose string) (*models.EncryptedField, error)
	DecryptField(ctx context.Context, field *models.EncryptedField, purpose string) (string, error)
}

type ConsultantSearcher interface {
	Search(ctx context.Context, text string, limit int) ([]primitive.ObjectID, error)
}

type TokenIssuer interface {
	Sign(id token.Identity) (string, error)
	Validate(raw string) (token.Identity, error)
}

const (
	lockRetries    = 40
	lockRetryDelay = 50 * time.Millisecond
	defaultLockTTL = 10 * time.Second
)

// withLock runs fn while holding key. A lease held elsewhere is retried
// briefly before reporting ErrConflict. A nil locker runs fn directly.
func withLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func() error) error {
	if l == nil {
		return fn()
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	var release func()
	for attempt := 0; ; attempt++ {
		r, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			release = r
			break
		}
		if !errors.Is(err, redisrepo.ErrLockHeld) {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if attempt == lockRetries {
			return fmt.Errorf("%w: another request is in progress, retry", ErrConflict)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	defer release()
	return fn()
}
