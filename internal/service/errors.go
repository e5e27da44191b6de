package service

import (
	"errors"
	"fmt"

	"booking-service/internal/repository"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidOTP       = errors.New("invalid or expired OTP")
	ErrAttemptsExceeded = errors.New("maximum OTP attempts exceeded, request a new OTP")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrInvalidStatus    = errors.New("operation not allowed in the current status")
	ErrGatewayError     = errors.New("payment gateway error")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrInternal         = errors.New("internal error")

	ErrUserDetailsRequired = errors.New("user details are required for new users")
	ErrRateLimited         = errors.New("too many OTP requests, try again later")

	ErrMissingPaymentID = &subError{parent: ErrInvalidStatus, code: "MISSING_PAYMENT_ID", msg: "payment has no gateway payment id"}
	ErrOrderFailed      = &subError{parent: ErrGatewayError, code: "RAZORPAY_ORDER_ERROR", msg: "failed to create payment order"}
	ErrRefundFailed     = &subError{parent: ErrGatewayError, code: "RAZORPAY_REFUND_ERROR", msg: "failed to process refund"}
)

// subError is a sentinel that also matches its parent under errors.Is.
type subError struct {
	parent error
	code   string
	msg    string
}

func (e *subError) Error() string { return e.msg }
func (e *subError) Unwrap() error { return e.parent }

// codes is checked in order, so specialisations come before their parents.
var codes = []struct {
	err  error
	code string
}{
	{ErrMissingPaymentID, ErrMissingPaymentID.code},
	{ErrOrderFailed, ErrOrderFailed.code},
	{ErrRefundFailed, ErrRefundFailed.code},
	{ErrInvalidInput, "INVALID_INPUT"},
	{ErrNotFound, "NOT_FOUND"},
	{ErrConflict, "CONFLICT"},
	{ErrInvalidOTP, "INVALID_OTP"},
	{ErrAttemptsExceeded, "ATTEMPTS_EXCEEDED"},
	{ErrInvalidSignature, "INVALID_SIGNATURE"},
	{ErrInvalidStatus, "INVALID_STATUS"},
	{ErrGatewayError, "GATEWAY_ERROR"},
	{ErrUnauthenticated, "UNAUTHENTICATED"},
	{ErrUserDetailsRequired, "USER_DETAILS_REQUIRED"},
	{ErrRateLimited, "RATE_LIMITED"},
}

// Code returns the stable wire code for err, INTERNAL_ERROR when it is
// not part of the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL_ERROR"
}

// IsKnown reports whether err belongs to the taxonomy and may be shown to callers.
func IsKnown(err error) bool {
	return Code(err) != "INTERNAL_ERROR"
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

// storeErr maps repository sentinels onto the taxonomy. Anything else is
// wrapped with op and left for the transport to collapse.
func storeErr(op, what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
