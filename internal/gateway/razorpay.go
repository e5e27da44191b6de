package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"

	"booking-service/internal/config"
)

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay adapts the razorpay-go client. The client is built once at
// construction and injected, never looked up lazily.
type Razorpay struct {
	orders   orderAPI
	payments paymentAPI
	logger   *zap.Logger
}

func NewRazorpay(cfg *config.Config, logger *zap.Logger) (*Razorpay, error) {
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		return nil, ErrNotConfigured
	}
	c := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	return &Razorpay{orders: c.Order, payments: c.Payment, logger: logger}, nil
}

func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	body, err := r.orders.Create(map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}, nil)
	if err != nil {
		r.logger.Error("Razorpay order creation failed", zap.String("receipt", req.Receipt), zap.Error(err))
		return nil, fmt.Errorf("create order: %w", err)
	}

	order := &Order{
		ID:          str(body, "id"),
		AmountMinor: num(body, "amount"),
		Currency:    str(body, "currency"),
		Receipt:     str(body, "receipt"),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("create order: response has no id")
	}
	return order, nil
}

func (r *Razorpay) Refund(ctx context.Context, paymentID string, amountMinor int64) (*Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := r.payments.Refund(paymentID, int(amountMinor), nil, nil)
	if err != nil {
		r.logger.Error("Razorpay refund failed", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, fmt.Errorf("refund: %w", err)
	}
	refund := &Refund{
		ID:          str(body, "id"),
		PaymentID:   str(body, "payment_id"),
		AmountMinor: num(body, "amount"),
		Status:      str(body, "status"),
	}
	if refund.ID == "" {
		return nil, fmt.Errorf("refund: response has no id")
	}
	return refund, nil
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// num reads a JSON number, which the client decodes as float64.
func num(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
