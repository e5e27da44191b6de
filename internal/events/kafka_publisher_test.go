package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/config"
)

type sent struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type fakeProducer struct {
	mu          sync.Mutex
	calls       []sent
	ProduceFunc func(ctx context.Context) error
}

func (f *fakeProducer) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	f.mu.Lock()
	f.calls = append(f.calls, sent{topic: topic, key: string(key), value: value, headers: headers})
	f.mu.Unlock()
	if f.ProduceFunc != nil {
		return f.ProduceFunc(ctx)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{Kafka: config.KafkaConfig{
		OTPTopic:         "notifications.otp",
		PaymentTopic:     "payments.events",
		AppointmentTopic: "appointments.events",
		PublishTimeout:   time.Second,
	}}
}

func TestPublishRoutesStreamsToTopics(t *testing.T) {
	t.Parallel()
	fp := &fakeProducer{}
	p := NewKafkaPublisher(fp, testConfig(), zap.NewNop())

	p.Publish(context.Background(), StreamPayment, "pay1", TypePaymentCompleted, PaymentEvent{PaymentID: "pay1", Amount: 500})
	_ = p.Close()

	if len(fp.calls) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(fp.calls))
	}
	c := fp.calls[0]
	if c.topic != "payments.events" || c.key != "pay1" || c.headers["event-type"] != TypePaymentCompleted {
		t.Errorf("Unexpected message: %+v", c)
	}

	var env struct {
		ID   string       `json:"id"`
		Type string       `json:"type"`
		Data PaymentEvent `json:"data"`
	}
	if err := json.Unmarshal(c.value, &env); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if env.ID == "" || env.Type != TypePaymentCompleted || env.Data.Amount != 500 {
		t.Errorf("Unexpected envelope: %+v", env)
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	fp := &fakeProducer{ProduceFunc: func(ctx context.Context) error { return errors.New("broker down") }}
	p := NewKafkaPublisher(fp, testConfig(), zap.NewNop())

	p.Publish(context.Background(), StreamOTP, "9876543210", TypeOTPIssued, OTPNotification{Mobile: "9876543210"})
	if err := p.Close(); err != nil {
		t.Errorf("Expected nil from Close, got %v", err)
	}
	if len(fp.calls) != 1 {
		t.Errorf("Expected one attempt, got %d", len(fp.calls))
	}
}

func TestPublishDetachedFromRequestContext(t *testing.T) {
	t.Parallel()
	var gotErr error
	fp := &fakeProducer{ProduceFunc: func(ctx context.Context) error {
		gotErr = ctx.Err()
		return nil
	}}
	p := NewKafkaPublisher(fp, testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, StreamAppointment, "a1", TypeAppointmentBooked, AppointmentEvent{AppointmentID: "a1"})
	_ = p.Close()

	if gotErr != nil {
		t.Errorf("Expected live context for delivery, got %v", gotErr)
	}
}

func TestMissingTopicSkips(t *testing.T) {
	t.Parallel()
	fp := &fakeProducer{}
	p := NewKafkaPublisher(fp, &config.Config{}, zap.NewNop())
	p.Publish(context.Background(), StreamOTP, "k", TypeOTPIssued, nil)
	_ = p.Close()
	if len(fp.calls) != 0 {
		t.Errorf("Expected no messages, got %d", len(fp.calls))
	}
}
