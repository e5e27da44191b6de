// Package events publishes notifications and domain events. Publishing is
// fire-and-forget: callers never see a delivery error.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stream selects the topic an event is written to.
type Stream int

const (
	StreamOTP Stream = iota
	StreamPayment
	StreamAppointment
)

func (s Stream) String() string {
	switch s {
	case StreamOTP:
		return "otp"
	case StreamPayment:
		return "payment"
	case StreamAppointment:
		return "appointment"
	default:
		return "unknown"
	}
}

const (
	TypeOTPIssued = "otp.issued"

	TypePaymentCreated   = "payment.created"
	TypePaymentCompleted = "payment.completed"
	TypePaymentFailed    = "payment.failed"
	TypePaymentRefunded  = "payment.refunded"

	TypeAppointmentBooked    = "appointment.booked"
	TypeAppointmentUpdated   = "appointment.updated"
	TypeAppointmentCancelled = "appointment.cancelled"
)

// Envelope is the JSON body of every message.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// OTPNotification asks the delivery consumer to send a code.
type OTPNotification struct {
	Mobile    string    `json:"mobile"`
	Email     string    `json:"email,omitempty"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PaymentEvent struct {
	PaymentID string  `json:"paymentId"`
	PatientID string  `json:"patientId"`
	OrderID   string  `json:"orderId"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	RefundID  string  `json:"refundId,omitempty"`
}

type AppointmentEvent struct {
	AppointmentID string `json:"appointmentId"`
	PatientID     string `json:"patientId"`
	ConsultantID  string `json:"consultantId"`
	CenterID      string `json:"centerId"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
}

type Publisher interface {
	// Publish hands the event off and returns immediately.
	Publish(ctx context.Context, stream Stream, key, eventType string, data interface{})
	// Close waits for in-flight deliveries.
	Close() error
}

// LogPublisher stands in when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, stream Stream, key, eventType string, data interface{}) {
	p.logger.Debug("Event not published, no broker configured",
		zap.Stringer("stream", stream),
		zap.String("type", eventType),
		zap.String("key", key))
}

func (p *LogPublisher) Close() error { return nil }
