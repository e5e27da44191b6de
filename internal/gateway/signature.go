package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256Hex returns the lowercase hex HMAC-SHA256 of message under secret.
func HMACSHA256Hex(secret, message string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// PaymentSignature is the signature the provider attaches to a captured payment.
func PaymentSignature(secret, orderID, paymentID string) string {
	return HMACSHA256Hex(secret, orderID+"|"+paymentID)
}

// VerifySignature recomputes the payment signature and compares it in
// constant time. An empty secret never verifies.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" {
		return false
	}
	expected := PaymentSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
