package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"booking-service/internal/service"
	"booking-service/internal/util"
)

const maxBodyBytes = 1 << 20

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

func respondWithJSON(logger *zap.Logger, w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError maps err onto a status and wire code. Errors outside the
// taxonomy are logged and hidden behind a generic message.
func respondWithError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	code := service.Code(err)
	text := err.Error()
	if !service.IsKnown(err) {
		logger.Error("Unhandled error",
			util.String("method", r.Method),
			util.String("path", r.URL.Path),
			util.ErrorField(err))
		text = service.ErrInternal.Error()
	} else {
		logger.Debug("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", status),
			util.String("code", code))
	}
	respondWithJSON(logger, w, status, Response{Error: text, Code: code, Message: message})
}

// statusFor determines the HTTP status code for an error
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingPaymentID),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUserDetailsRequired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidOTP),
		errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrAttemptsExceeded), errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrGatewayError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst. Malformed bodies are
// reported as invalid input.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", service.ErrInvalidInput)
	}
	return nil
}
