package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"booking-service/internal/config"
	"booking-service/internal/events"
	"booking-service/internal/gateway"
	"booking-service/internal/hashing"
	"booking-service/internal/models"
	"booking-service/internal/repository/memory"
)

const testSecret = "rzp_test_secret"

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		OTP:         config.OTPConfig{TTL: 5 * time.Minute, MaxAttempts: 5, IssueLimit: 5, IssueLimitWindow: 15 * time.Minute},
		JWT:         config.JWTConfig{Secret: "jwt-test-secret", ExpiresIn: time.Hour},
		Razorpay:    config.RazorpayConfig{KeyID: "rzp_test_key", KeySecret: testSecret, Currency: "INR"},
		Booking:     config.BookingConfig{DefaultFee: 100, SlotLockTTL: time.Second},
	}
}

// plainHasher keeps tests fast; Argon2 is covered in the hashing package.
type plainHasher struct{}

func (plainHasher) HashOTP(otp string) (*hashing.HashResult, error) {
	return &hashing.HashResult{Hash: "h:" + otp, Salt: "s", PepperVersion: 1}, nil
}

func (plainHasher) VerifyOTP(otp string, h *hashing.HashResult) (bool, error) {
	return h.Hash == "h:"+otp, nil
}

type fakeGateway struct {
	mu              sync.Mutex
	CreateOrderFunc func(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	RefundFunc      func(ctx context.Context, paymentID string, amountMinor int64) (*gateway.Refund, error)
	orders          []gateway.OrderRequest
	refunds         []int64
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	f.mu.Lock()
	f.orders = append(f.orders, req)
	n := len(f.orders)
	f.mu.Unlock()
	if f.CreateOrderFunc != nil {
		return f.CreateOrderFunc(ctx, req)
	}
	return &gateway.Order{
		ID:          fmt.Sprintf("order_%03d", n),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
	}, nil
}

func (f *fakeGateway) Refund(ctx context.Context, paymentID string, amountMinor int64) (*gateway.Refund, error) {
	f.mu.Lock()
	f.refunds = append(f.refunds, amountMinor)
	f.mu.Unlock()
	if f.RefundFunc != nil {
		return f.RefundFunc(ctx, paymentID, amountMinor)
	}
	return &gateway.Refund{ID: "rfnd_1", PaymentID: paymentID, AmountMinor: amountMinor, Status: "processed"}, nil
}

func (f *fakeGateway) refundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refunds)
}

type publishedEvent struct {
	Stream events.Stream
	Key    string
	Type   string
	Data   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, stream events.Stream, key, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Stream: stream, Key: key, Type: eventType, Data: data})
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (r *recordingRecorder) Record(ctx context.Context, e models.SecurityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingRecorder) Close() error { return nil }

func (r *recordingRecorder) count(t models.SecurityEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

// seedDirectory stores one active center with one active consultant.
func seedDirectory(t *testing.T, store *memory.Store) (*models.Center, *models.Consultant) {
	t.Helper()
	ctx := context.Background()
	center := &models.Center{Name: "Indiranagar", City: "Bengaluru", IsActive: true}
	if err := store.Directory().SaveCenter(ctx, center); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	consultant := &models.Consultant{Name: "Dr. Rao", Specialty: "Sports physio", CenterID: center.ID, IsActive: true}
	if err := store.Directory().SaveConsultant(ctx, consultant); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return center, consultant
}

func nopLogger() *zap.Logger { return zap.NewNop() }

func newPatient() primitive.ObjectID { return primitive.NewObjectID() }
