package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/config"
	"booking-service/internal/hashing"
	"booking-service/internal/models"
	"booking-service/internal/repository"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// OTPEngine issues and verifies one-time passcodes. Only hashes are stored.
type OTPEngine struct {
	store       repository.OTPRepository
	hasher      OTPHasher
	ttl         time.Duration
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
	generate    func() (string, error)
}

func NewOTPEngine(store repository.OTPRepository, hasher OTPHasher, cfg *config.Config, logger *zap.Logger) *OTPEngine {
	ttl := cfg.OTP.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxAttempts := cfg.OTP.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OTPEngine{
		store:       store,
		hasher:      hasher,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		generate:    generateCode,
	}
}

// generateCode draws uniformly from [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// Issue voids earlier challenges for mobile and stores a new one. The code
// is returned for out-of-band delivery only.
func (e *OTPEngine) Issue(ctx context.Context, mobile string) (string, *models.OTPChallenge, error) {
	code, err := e.generate()
	if err != nil {
		return "", nil, err
	}
	hash, err := e.hasher.HashOTP(code)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash OTP: %w", err)
	}

	now := e.now()
	challenge := &models.OTPChallenge{
		Mobile:        mobile,
		CodeHash:      hash.Hash,
		CodeSalt:      hash.Salt,
		PepperVersion: hash.PepperVersion,
		ExpiresAt:     now.Add(e.ttl),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.Issue(ctx, challenge); err != nil {
		return "", nil, fmt.Errorf("failed to store OTP: %w", err)
	}
	return code, challenge, nil
}

// Verify checks code against the newest active challenge. It returns false
// for a wrong, absent, expired or consumed code and ErrAttemptsExceeded once
// the challenge has taken maxAttempts wrong guesses.
func (e *OTPEngine) Verify(ctx context.Context, mobile, code string) (bool, error) {
	now := e.now()
	challenge, err := e.store.FindActive(ctx, mobile, now)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load OTP: %w", err)
	}
	if challenge.Attempts >= e.maxAttempts {
		return false, ErrAttemptsExceeded
	}

	ok, err := e.hasher.VerifyOTP(code, &hashing.HashResult{
		Hash:          challenge.CodeHash,
		Salt:          challenge.CodeSalt,
		PepperVersion: challenge.PepperVersion,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check OTP: %w", err)
	}

	if !ok {
		updated, err := e.store.IncrementAttempts(ctx, challenge.ID, e.maxAttempts)
		if errors.Is(err, repository.ErrNotFound) {
			// Consumed or capped by a concurrent request.
			if e.consumed(ctx, mobile, now, challenge) {
				return false, nil
			}
			return false, ErrAttemptsExceeded
		}
		if err != nil {
			return false, fmt.Errorf("failed to record OTP attempt: %w", err)
		}
		e.logger.Debug("OTP mismatch", zap.Int("attempts", updated.Attempts))
		return false, nil
	}

	if err := e.store.MarkVerified(ctx, challenge.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume OTP: %w", err)
	}
	return true, nil
}

// consumed reports whether challenge is no longer the active one, meaning
// it was verified or replaced rather than capped.
func (e *OTPEngine) consumed(ctx context.Context, mobile string, now time.Time, challenge *models.OTPChallenge) bool {
	current, err := e.store.FindActive(ctx, mobile, now)
	if err != nil {
		return true
	}
	return current.ID != challenge.ID
}
