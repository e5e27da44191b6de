package models

import "time"

type SecurityEventType string

const (
	EventOTPIssued         SecurityEventType = "otp_issued"
	EventOTPVerified       SecurityEventType = "otp_verified"
	EventOTPFailed         SecurityEventType = "otp_failed"
	EventOTPExhausted      SecurityEventType = "otp_attempts_exceeded"
	EventOTPRateLimited    SecurityEventType = "otp_rate_limited"
	EventSignatureMismatch SecurityEventType = "payment_signature_mismatch"
	EventTestBypassUsed    SecurityEventType = "payment_test_bypass"
	EventRefundIssued      SecurityEventType = "payment_refunded"
)

// SecurityEvent is one row of the append-only audit trail.
type SecurityEvent struct {
	EventID   string            `ch:"event_id"`
	EventDate string            `ch:"event_date"`
	EventTime time.Time         `ch:"event_time"`
	EventType SecurityEventType `ch:"event_type"`
	Subject   string            `ch:"subject"`
	PatientID string            `ch:"patient_id"`
	IPAddress string            `ch:"ip_address"`
	Details   string            `ch:"details"`
}
