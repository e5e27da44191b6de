package models

import "time"

// LedgerEntry is one immutable payment status change.
// From is empty for the entry written when the order is opened.
type LedgerEntry struct {
	EventID    string        `json:"eventId"`
	PaymentID  string        `json:"paymentId"`
	PatientID  string        `json:"patientId"`
	From       PaymentStatus `json:"from"`
	To         PaymentStatus `json:"to"`
	Amount     float64       `json:"amount"`
	Currency   string        `json:"currency"`
	GatewayRef string        `json:"gatewayRef,omitempty"`
	At         time.Time     `json:"at"`
}
