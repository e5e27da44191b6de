package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"booking-service/internal/audit"
	"booking-service/internal/config"
	"booking-service/internal/events"
	"booking-service/internal/gateway"
	"booking-service/internal/models"
	"booking-service/internal/repository"
	"booking-service/internal/util"
)

const (
	defaultPaymentDescription = "Payment for PhysioCare"
	maxReceiptLen             = 40
	testPaymentPrefix         = "pay_test"
)

type CreateOrderRequest struct {
	Amount        float64 `json:"amount" validate:"required,gte=1,lte=1000000"`
	Description   string  `json:"description,omitempty" validate:"omitempty,max=500"`
	AppointmentID string  `json:"appointmentId,omitempty" validate:"omitempty,objectid"`
}

// OrderResult is what the client needs to open the gateway checkout.
// Amount is in minor units.
type OrderResult struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	KeyID     string `json:"keyId"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
	Method            string `json:"method" validate:"required"`
}

// PaymentService is the payment orchestrator. The locally recomputed
// signature is the only evidence that money moved.
type PaymentService struct {
	payments     repository.PaymentRepository
	appointments repository.AppointmentRepository
	ledger       repository.LedgerRepository
	gateway      gateway.Gateway
	locker       Locker
	publisher    events.Publisher
	recorder     audit.Recorder
	cfg          *config.Config
	logger       *zap.Logger
	now          func() time.Time

	stampMu   sync.Mutex
	lastStamp int64
}

func NewPaymentService(
	payments repository.PaymentRepository,
	appointments repository.AppointmentRepository,
	ledger repository.LedgerRepository,
	gw gateway.Gateway,
	locker Locker,
	publisher events.Publisher,
	recorder audit.Recorder,
	cfg *config.Config,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:     payments,
		appointments: appointments,
		ledger:       ledger,
		gateway:      gw,
		locker:       locker,
		publisher:    publisher,
		recorder:     recorder,
		cfg:          cfg,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// toMinor converts rupees to paise, rounding half away from zero.
func toMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// stamp returns a millisecond timestamp that never repeats within the process.
func (s *PaymentService) stamp() int64 {
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.lastStamp {
		ms = s.lastStamp + 1
	}
	s.lastStamp = ms
	return ms
}

func receiptFor(patientID primitive.ObjectID, stamp int64) string {
	hex := patientID.Hex()
	r := fmt.Sprintf("rcpt_%s_%d", hex[len(hex)-8:], stamp)
	if len(r) > maxReceiptLen {
		r = r[:maxReceiptLen]
	}
	return r
}

func (s *PaymentService) currency() string {
	if s.cfg.Razorpay.Currency == "" {
		return "INR"
	}
	return s.cfg.Razorpay.Currency
}

func (s *PaymentService) testBypass(gatewayPaymentID string) bool {
	return s.cfg.TestBypassEnabled() && strings.HasPrefix(gatewayPaymentID, testPaymentPrefix)
}

// CreateOrder opens a gateway order and records a pending payment for it.
// Nothing is stored when the gateway call fails.
func (s *PaymentService) CreateOrder(ctx context.Context, patientID primitive.ObjectID, req *CreateOrderRequest) (*OrderResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	description := util.SanitizeInput(req.Description)
	if description == "" {
		description = defaultPaymentDescription
	}

	var appointmentID *primitive.ObjectID
	if req.AppointmentID != "" {
		oid, _ := primitive.ObjectIDFromHex(req.AppointmentID)
		if _, err := s.appointments.FindByIDForPatient(ctx, oid, patientID); err != nil {
			return nil, storeErr("load appointment", "appointment", err)
		}
		appointmentID = &oid
	}

	if s.gateway == nil {
		s.logger.Error("Order creation failed", util.ErrorField(gateway.ErrNotConfigured))
		return nil, ErrOrderFailed
	}
	amountMinor := toMinor(req.Amount)
	receipt := receiptFor(patientID, s.stamp())
	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: amountMinor,
		Currency:    s.currency(),
		Receipt:     receipt,
		Notes: map[string]string{
			"patientId":   patientID.Hex(),
			"description": description,
		},
	})
	if err != nil {
		s.logger.Error("Order creation failed",
			zap.String("receipt", receipt),
			util.ErrorField(err))
		return nil, ErrOrderFailed
	}

	now := s.now()
	p := &models.Payment{
		PatientID:      patientID,
		AppointmentID:  appointmentID,
		Amount:         req.Amount,
		Currency:       s.currency(),
		Method:         models.MethodCard,
		Status:         models.PaymentPending,
		Description:    description,
		Receipt:        receipt,
		GatewayOrderID: order.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}

	s.logger.Info("Payment order created",
		zap.String("payment_id", p.ID.Hex()),
		zap.String("order_id", order.ID),
		zap.Int64("amount_minor", amountMinor))
	s.record(ctx, p, "", events.TypePaymentCreated)

	return &OrderResult{
		PaymentID: p.ID.Hex(),
		OrderID:   order.ID,
		Amount:    amountMinor,
		Currency:  p.Currency,
		Receipt:   receipt,
		KeyID:     s.cfg.Razorpay.KeyID,
	}, nil
}

// Verify checks the gateway signature and completes the payment. A repeated
// delivery for the same gateway payment id returns the completed payment.
func (s *PaymentService) Verify(ctx context.Context, patientID primitive.ObjectID, req *VerifyPaymentRequest) (*models.Payment, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	method, err := models.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if s.testBypass(req.RazorpayPaymentID) {
		s.logger.Warn("Payment signature bypassed for test payment", zap.String("order_id", req.RazorpayOrderID))
		s.audit(ctx, models.EventTestBypassUsed, req.RazorpayOrderID, patientID.Hex(), nil)
	} else if !gateway.VerifySignature(s.cfg.Razorpay.KeySecret, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		s.logger.Warn("Payment signature mismatch", zap.String("order_id", req.RazorpayOrderID))
		s.audit(ctx, models.EventSignatureMismatch, req.RazorpayOrderID, patientID.Hex(),
			map[string]interface{}{"paymentId": req.RazorpayPaymentID})
		return nil, ErrInvalidSignature
	}

	p, err := s.payments.FindByOrderForPatient(ctx, req.RazorpayOrderID, patientID)
	if err != nil {
		return nil, storeErr("load payment", "payment", err)
	}
	if done, err := s.alreadyVerified(p, req.RazorpayPaymentID); done || err != nil {
		return p, err
	}

	updated, err := s.payments.Transition(ctx, p.ID, models.PaymentTransition{
		From:             models.PaymentPending,
		To:               models.PaymentCompleted,
		Method:           method,
		GatewayPaymentID: req.RazorpayPaymentID,
		GatewaySignature: req.RazorpaySignature,
		TransactionID:    req.RazorpayPaymentID,
		At:               s.now(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		// Lost a race with a concurrent delivery.
		latest, lerr := s.payments.FindByIDForPatient(ctx, p.ID, patientID)
		if lerr != nil {
			return nil, storeErr("load payment", "payment", lerr)
		}
		if done, err := s.alreadyVerified(latest, req.RazorpayPaymentID); done || err != nil {
			return latest, err
		}
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidStatus, latest.Status.Wire())
	}
	if err != nil {
		return nil, fmt.Errorf("complete payment: %w", err)
	}

	s.logger.Info("Payment verified", zap.String("payment_id", updated.ID.Hex()))
	s.record(ctx, updated, models.PaymentPending, events.TypePaymentCompleted)
	return updated, nil
}

// alreadyVerified reports whether p is settled by this gateway payment id.
// Any state other than pending or that exact completion is an error.
func (s *PaymentService) alreadyVerified(p *models.Payment, gatewayPaymentID string) (bool, error) {
	switch {
	case p.Status == models.PaymentPending:
		return false, nil
	case p.Status == models.PaymentCompleted && p.GatewayPaymentID == gatewayPaymentID:
		s.logger.Info("Duplicate payment verification accepted", zap.String("payment_id", p.ID.Hex()))
		return true, nil
	default:
		return false, fmt.Errorf("%w: payment is %s", ErrInvalidStatus, p.Status.Wire())
	}
}

// Refund returns the full amount of a completed payment. A gateway failure
// leaves the payment completed.
func (s *PaymentService) Refund(ctx context.Context, patientID primitive.ObjectID, id string) (*models.Payment, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}

	var refunded *models.Payment
	err = withLock(ctx, s.locker, "payment:"+oid.Hex(), 0, func() error {
		p, err := s.payments.FindByIDForPatient(ctx, oid, patientID)
		if err != nil {
			return storeErr("load payment", "payment", err)
		}
		if p.Status != models.PaymentCompleted {
			return fmt.Errorf("%w: only completed payments can be refunded", ErrInvalidStatus)
		}
		if p.GatewayPaymentID == "" {
			return ErrMissingPaymentID
		}

		var refundID string
		if s.testBypass(p.GatewayPaymentID) {
			refundID = fmt.Sprintf("rfnd_test_%d", s.now().UnixMilli())
			s.logger.Warn("Simulated refund for test payment", zap.String("payment_id", p.ID.Hex()))
		} else {
			if s.gateway == nil {
				s.logger.Error("Refund failed", zap.String("payment_id", p.ID.Hex()), util.ErrorField(gateway.ErrNotConfigured))
				return ErrRefundFailed
			}
			refund, err := s.gateway.Refund(ctx, p.GatewayPaymentID, toMinor(p.Amount))
			if err != nil {
				s.logger.Error("Refund failed", zap.String("payment_id", p.ID.Hex()), util.ErrorField(err))
				return ErrRefundFailed
			}
			refundID = refund.ID
		}

		updated, err := s.payments.Transition(ctx, p.ID, models.PaymentTransition{
			From:     models.PaymentCompleted,
			To:       models.PaymentRefunded,
			RefundID: refundID,
			At:       s.now(),
		})
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Refund issued but payment moved on",
				zap.String("payment_id", p.ID.Hex()), zap.String("refund_id", refundID))
			return fmt.Errorf("%w: payment is no longer completed", ErrInvalidStatus)
		}
		if err != nil {
			return fmt.Errorf("mark refunded: %w", err)
		}
		refunded = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment refunded",
		zap.String("payment_id", refunded.ID.Hex()), zap.String("refund_id", refunded.RefundID))
	s.audit(ctx, models.EventRefundIssued, refunded.ID.Hex(), patientID.Hex(),
		map[string]interface{}{"refundId": refunded.RefundID, "amount": refunded.Amount})
	s.record(ctx, refunded, models.PaymentCompleted, events.TypePaymentRefunded)
	return refunded, nil
}

// List returns the patient's payments, newest first.
func (s *PaymentService) List(ctx context.Context, patientID primitive.ObjectID, status string) ([]*models.Payment, error) {
	var st models.PaymentStatus
	if status != "" {
		parsed, err := models.ParsePaymentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		st = parsed
	}
	list, err := s.payments.ListByPatient(ctx, patientID, st)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return list, nil
}

func (s *PaymentService) Get(ctx context.Context, patientID primitive.ObjectID, id string) (*models.Payment, error) {
	oid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	p, err := s.payments.FindByIDForPatient(ctx, oid, patientID)
	if err != nil {
		return nil, storeErr("load payment", "payment", err)
	}
	return p, nil
}

func (s *PaymentService) Stats(ctx context.Context, patientID primitive.ObjectID) (*models.PaymentStats, error) {
	list, err := s.payments.ListByPatient(ctx, patientID, "")
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	stats := &models.PaymentStats{}
	for _, p := range list {
		stats.Add(p)
	}
	return stats, nil
}

// Ledger returns the recorded transitions of one payment, oldest first.
func (s *PaymentService) Ledger(ctx context.Context, patientID primitive.ObjectID, id string) ([]*models.LedgerEntry, error) {
	p, err := s.Get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListForPayment(ctx, p.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return entries, nil
}

func (s *PaymentService) audit(ctx context.Context, t models.SecurityEventType, subject, patientID string, details map[string]interface{}) {
	e := audit.NewEvent(t, subject, patientID, details)
	e.IPAddress = clientIP(ctx)
	s.recorder.Record(ctx, e)
}

// record appends the transition to the ledger and publishes it. Failures
// are logged and never undo the transition.
func (s *PaymentService) record(ctx context.Context, p *models.Payment, from models.PaymentStatus, eventType string) {
	entry := &models.LedgerEntry{
		PaymentID:  p.ID.Hex(),
		PatientID:  p.PatientID.Hex(),
		From:       from,
		To:         p.Status,
		Amount:     p.Amount,
		Currency:   p.Currency,
		GatewayRef: gatewayRef(p),
		At:         p.UpdatedAt,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append payment ledger",
			zap.String("payment_id", entry.PaymentID), util.ErrorField(err))
	}

	s.publisher.Publish(ctx, events.StreamPayment, p.ID.Hex(), eventType, events.PaymentEvent{
		PaymentID: p.ID.Hex(),
		PatientID: p.PatientID.Hex(),
		OrderID:   p.GatewayOrderID,
		Status:    p.Status.Wire(),
		Amount:    p.Amount,
		Currency:  p.Currency,
		RefundID:  p.RefundID,
	})
}

func gatewayRef(p *models.Payment) string {
	switch p.Status {
	case models.PaymentRefunded:
		return p.RefundID
	case models.PaymentCompleted:
		return p.GatewayPaymentID
	default:
		return p.GatewayOrderID
	}
}
