package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Payment struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PatientID        primitive.ObjectID  `bson:"patientId" json:"patientId"`
	AppointmentID    *primitive.ObjectID `bson:"appointmentId,omitempty" json:"appointmentId,omitempty"`
	Amount           float64             `bson:"amount" json:"amount"`
	Currency         string              `bson:"currency" json:"currency"`
	Method           PaymentMethod       `bson:"method" json:"method"`
	Status           PaymentStatus       `bson:"status" json:"status"`
	Description      string              `bson:"description,omitempty" json:"description,omitempty"`
	Receipt          string              `bson:"receipt" json:"receipt"`
	GatewayOrderID   string              `bson:"gatewayOrderId" json:"gatewayOrderId"`
	GatewayPaymentID string              `bson:"gatewayPaymentId,omitempty" json:"gatewayPaymentId,omitempty"`
	GatewaySignature string              `bson:"gatewaySignature,omitempty" json:"-"`
	TransactionID    string              `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	RefundID         string              `bson:"refundId,omitempty" json:"refundId,omitempty"`
	FailureReason    string              `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	CompletedAt      *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	RefundedAt       *time.Time          `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// PaymentTransition is the conditional update applied when a payment moves
// from one status to the next. Empty fields are not written.
type PaymentTransition struct {
	From             PaymentStatus
	To               PaymentStatus
	Method           PaymentMethod
	GatewayPaymentID string
	GatewaySignature string
	TransactionID    string
	RefundID         string
	FailureReason    string
	At               time.Time
}

// Apply writes the transition onto p without checking From.
func (t PaymentTransition) Apply(p *Payment) {
	p.Status = t.To
	if t.Method != "" {
		p.Method = t.Method
	}
	if t.GatewayPaymentID != "" {
		p.GatewayPaymentID = t.GatewayPaymentID
	}
	if t.GatewaySignature != "" {
		p.GatewaySignature = t.GatewaySignature
	}
	if t.TransactionID != "" {
		p.TransactionID = t.TransactionID
	}
	if t.RefundID != "" {
		p.RefundID = t.RefundID
	}
	if t.FailureReason != "" {
		p.FailureReason = t.FailureReason
	}
	at := t.At
	switch t.To {
	case PaymentCompleted:
		p.CompletedAt = &at
	case PaymentRefunded:
		p.RefundedAt = &at
	}
	p.UpdatedAt = at
}

type PaymentStats struct {
	TotalPaid    float64 `json:"totalPaid"`
	TotalPending float64 `json:"totalPending"`
	TotalFailed  float64 `json:"totalFailed"`
	PaymentCount int     `json:"paymentCount"`
}

// Add folds one payment into the running totals.
func (s *PaymentStats) Add(p *Payment) {
	s.PaymentCount++
	switch p.Status {
	case PaymentCompleted:
		s.TotalPaid += p.Amount
	case PaymentPending:
		s.TotalPending += p.Amount
	case PaymentFailed:
		s.TotalFailed += p.Amount
	}
}
