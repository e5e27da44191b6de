package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"booking-service/internal/repository"
	redisrepo "booking-service/internal/repository/redis"
)

func TestCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bad", ErrInvalidInput), "INVALID_INPUT"},
		{ErrInvalidOTP, "INVALID_OTP"},
		{ErrAttemptsExceeded, "ATTEMPTS_EXCEEDED"},
		{fmt.Errorf("wrap: %w", ErrMissingPaymentID), "MISSING_PAYMENT_ID"},
		{fmt.Errorf("%w: timeout", ErrOrderFailed), "RAZORPAY_ORDER_ERROR"},
		{ErrGatewayError, "GATEWAY_ERROR"},
		{ErrRateLimited, "RATE_LIMITED"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Expected %s for %v, got %s", tt.want, tt.err, got)
		}
	}
	if !errors.Is(ErrMissingPaymentID, ErrInvalidStatus) || !errors.Is(ErrRefundFailed, ErrGatewayError) {
		t.Error("Expected specialisations to match their parents")
	}
}

func TestStoreErrMapping(t *testing.T) {
	t.Parallel()
	if err := storeErr("load", "payment", repository.ErrNotFound); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := storeErr("save", "user", repository.ErrDuplicate); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	if err := storeErr("load", "user", errors.New("socket closed")); IsKnown(err) {
		t.Errorf("Expected an unclassified error, got %v", err)
	}
}

// heldLocker reports the lease as held for the first busy calls.
type heldLocker struct {
	mu    sync.Mutex
	busy  int
	calls int
}

func (l *heldLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.calls <= l.busy {
		return nil, redisrepo.ErrLockHeld
	}
	return func() {}, nil
}

func TestWithLockRetriesHeldLease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l := &heldLocker{busy: 2}
	ran := false
	if err := withLock(ctx, l, "k", time.Second, func() error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("Expected fn to run after retries, got %v", err)
	}
	if l.calls != 3 {
		t.Errorf("Expected 3 acquire calls, got %d", l.calls)
	}

	stuck := &heldLocker{busy: 1 << 30}
	if err := withLock(ctx, stuck, "k", time.Second, func() error { return nil }); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict for a lease that never frees, got %v", err)
	}

	if err := withLock(ctx, nil, "k", 0, func() error { return ErrNotFound }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected fn error to pass through, got %v", err)
	}
}
