// Package gateway is the payment provider boundary: order creation and
// refunds go to the provider, signature checks are computed locally.
package gateway

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("payment gateway credentials not configured")

// OrderRequest is in minor units (paise for INR).
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
}

type Refund struct {
	ID          string
	PaymentID   string
	AmountMinor int64
	Status      string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// Refund refunds amountMinor of a captured payment.
	Refund(ctx context.Context, paymentID string, amountMinor int64) (*Refund, error)
}
