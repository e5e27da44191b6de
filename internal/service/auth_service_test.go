package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"booking-service/internal/events"
	"booking-service/internal/models"
	"booking-service/internal/repository/memory"
	"booking-service/internal/token"
)

type fakeLimiter struct {
	mu                   sync.Mutex
	IncrementCounterFunc func(ctx context.Context, key string, window time.Duration) (int, error)
	calls                int
}

func (f *fakeLimiter) IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.IncrementCounterFunc(ctx, key, window)
}

type authFixture struct {
	store     *memory.Store
	auth      *AuthService
	publisher *recordingPublisher
	recorder  *recordingRecorder
}

func newAuthFixture(t *testing.T, limiter RateLimiter) *authFixture {
	t.Helper()
	cfg := testConfig()
	issuer, err := token.NewIssuer(cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	store := memory.NewStore()
	f := &authFixture{store: store, publisher: &recordingPublisher{}, recorder: &recordingRecorder{}}
	engine := newTestEngine(store, "482913")
	f.auth = NewAuthService(engine, store.Users(), limiter, issuer, f.publisher, f.recorder, cfg, nopLogger())
	return f
}

func TestSendOTPPublishesNotification(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil)

	if err := f.auth.SendOTP(context.Background(), &SendOTPRequest{Mobile: "98765 00001"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("Expected one event, got %d", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	n, ok := ev.Data.(events.OTPNotification)
	if !ok || ev.Stream != events.StreamOTP || n.Code != "482913" || n.Mobile != "9876500001" {
		t.Errorf("Unexpected notification: %+v", ev)
	}
	if f.recorder.count(models.EventOTPIssued) != 1 {
		t.Error("Expected otp_issued audit event")
	}
}

func TestSendOTPRejectsBadMobile(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil)
	for _, mobile := range []string{"", "12345", "5876500001", "98765000012"} {
		if err := f.auth.SendOTP(context.Background(), &SendOTPRequest{Mobile: mobile}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for %q, got %v", mobile, err)
		}
	}
}

func TestSendOTPRateLimited(t *testing.T) {
	t.Parallel()
	counter := memory.NewRateCounter()
	f := newAuthFixture(t, counter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := f.auth.SendOTP(ctx, &SendOTPRequest{Mobile: "9876500001"}); err != nil {
			t.Fatalf("Unexpected error on send %d: %v", i+1, err)
		}
	}
	if err := f.auth.SendOTP(ctx, &SendOTPRequest{Mobile: "9876500001"}); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
	if f.recorder.count(models.EventOTPRateLimited) != 1 {
		t.Error("Expected rate limit audit event")
	}
}

func TestSendOTPIgnoresLimiterOutage(t *testing.T) {
	t.Parallel()
	limiter := &fakeLimiter{IncrementCounterFunc: func(context.Context, string, time.Duration) (int, error) {
		return 0, errors.New("redis down")
	}}
	f := newAuthFixture(t, limiter)
	if err := f.auth.SendOTP(context.Background(), &SendOTPRequest{Mobile: "9876500001"}); err != nil {
		t.Errorf("Expected send to proceed, got %v", err)
	}
	if limiter.calls != 1 {
		t.Errorf("Expected one limiter call, got %d", limiter.calls)
	}
}

func TestVerifyOTPNewUser(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	mobile := "9876500001"

	_ = f.auth.SendOTP(ctx, &SendOTPRequest{Mobile: mobile})
	if _, err := f.auth.VerifyOTP(ctx, &VerifyOTPRequest{Mobile: mobile, OTP: "482913"}); !errors.Is(err, ErrUserDetailsRequired) {
		t.Fatalf("Expected ErrUserDetailsRequired, got %v", err)
	}
	// The challenge was spent by the attempt above.
	if _, err := f.auth.VerifyOTP(ctx, &VerifyOTPRequest{Mobile: mobile, OTP: "482913"}); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("Expected ErrInvalidOTP for a consumed code, got %v", err)
	}

	_ = f.auth.SendOTP(ctx, &SendOTPRequest{Mobile: mobile})
	res, err := f.auth.VerifyOTP(ctx, &VerifyOTPRequest{
		Mobile: mobile,
		OTP:    "482913",
		UserDetails: &UserDetails{
			Name:        "Asha Verma",
			Email:       "Asha@Example.com",
			DateOfBirth: "1990-04-12",
			Gender:      "female",
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.IsNewUser || res.Token == "" || res.User.Email != "asha@example.com" || !res.User.IsActive {
		t.Errorf("Unexpected result: %+v", res)
	}

	id, err := f.auth.Authenticate(res.Token)
	if err != nil || id.UserID != res.User.ID || id.Mobile != mobile {
		t.Errorf("Expected token to carry the user, got %+v, %v", id, err)
	}
}

func TestVerifyOTPExistingUser(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	mobile := "9876500001"
	existing := &models.User{Name: "Asha", Mobile: mobile, Email: "asha@example.com", IsActive: true}
	_ = f.store.Users().Create(ctx, existing)

	_ = f.auth.SendOTP(ctx, &SendOTPRequest{Mobile: mobile})
	if n := f.publisher.events[0].Data.(events.OTPNotification); n.Email != "asha@example.com" {
		t.Errorf("Expected notification to carry the email, got %q", n.Email)
	}

	res, err := f.auth.VerifyOTP(ctx, &VerifyOTPRequest{Mobile: mobile, OTP: "482913"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.IsNewUser || res.User.ID != existing.ID {
		t.Errorf("Expected existing user, got %+v", res)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	_ = f.auth.SendOTP(ctx, &SendOTPRequest{Mobile: "9876500001"})

	if _, err := f.auth.VerifyOTP(ctx, &VerifyOTPRequest{Mobile: "9876500001", OTP: "000000"}); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("Expected ErrInvalidOTP, got %v", err)
	}
	if _, err := f.auth.VerifyOTP(ctx, &VerifyOTPRequest{Mobile: "9876500001", OTP: "12ab56"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for a non-numeric code, got %v", err)
	}
	if f.recorder.count(models.EventOTPFailed) != 1 {
		t.Error("Expected one otp_failed audit event")
	}
}

func TestVerifyOTPDuplicateEmail(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	_ = f.store.Users().Create(ctx, &models.User{Name: "Other", Mobile: "9876500099", Email: "taken@example.com"})

	_ = f.auth.SendOTP(ctx, &SendOTPRequest{Mobile: "9876500001"})
	_, err := f.auth.VerifyOTP(ctx, &VerifyOTPRequest{
		Mobile:      "9876500001",
		OTP:         "482913",
		UserDetails: &UserDetails{Name: "Asha", Email: "taken@example.com"},
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	u := &models.User{Name: "Asha", Mobile: "9876500001"}
	_ = f.store.Users().Create(ctx, u)

	res, err := f.auth.RefreshToken(ctx, token.Identity{UserID: u.ID, Mobile: u.Mobile})
	if err != nil || res.Token == "" {
		t.Fatalf("Expected a token, got %+v, %v", res, err)
	}
	if _, err := f.auth.RefreshToken(ctx, token.Identity{UserID: primitive.NewObjectID()}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := f.auth.Authenticate("not-a-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}
}
