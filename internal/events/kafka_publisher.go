package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-service/internal/client"
	"booking-service/internal/config"
)

type producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

var _ producer = (*client.KafkaProducer)(nil)

// KafkaPublisher writes each event on its own goroutine with a bounded
// timeout, detached from the request context.
type KafkaPublisher struct {
	producer producer
	topics   map[Stream]string
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func NewKafkaPublisher(p producer, cfg *config.Config, logger *zap.Logger) *KafkaPublisher {
	timeout := cfg.Kafka.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{
		producer: p,
		topics: map[Stream]string{
			StreamOTP:         cfg.Kafka.OTPTopic,
			StreamPayment:     cfg.Kafka.PaymentTopic,
			StreamAppointment: cfg.Kafka.AppointmentTopic,
		},
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, stream Stream, key, eventType string, data interface{}) {
	topic := p.topics[stream]
	if topic == "" {
		p.logger.Warn("No topic configured for stream", zap.Stringer("stream", stream))
		return
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now(),
		Data:       data,
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("Failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	headers := map[string]string{"event-type": eventType, "event-id": env.ID}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.producer.ProduceMessage(sendCtx, topic, []byte(key), value, headers); err != nil {
			p.logger.Error("Failed to publish event",
				zap.String("topic", topic),
				zap.String("type", eventType),
				zap.String("event_id", env.ID),
				zap.Error(err))
		}
	}()
}

func (p *KafkaPublisher) Close() error {
	p.wg.Wait()
	return nil
}
