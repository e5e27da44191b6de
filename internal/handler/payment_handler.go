package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/service"
)

// PaymentHandler serves payment orders and saved payment methods.
type PaymentHandler struct {
	payments *service.PaymentService
	methods  *service.PaymentMethodService
	logger   *zap.Logger
}

func NewPaymentHandler(payments *service.PaymentService, methods *service.PaymentMethodService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, methods: methods, logger: logger}
}

func (h *PaymentHandler) RegisterProtected(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Post("/orders", h.CreateOrder)
		r.Post("/verify", h.Verify)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/refund", h.Refund)
		r.Get("/{id}/ledger", h.Ledger)
	})
	r.Route("/payment-methods", func(r chi.Router) {
		r.Get("/", h.ListMethods)
		r.Post("/", h.CreateMethod)
		r.Get("/{id}", h.GetMethod)
		r.Patch("/{id}", h.UpdateMethod)
		r.Delete("/{id}", h.DeleteMethod)
	})
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	list, err := h.payments.List(r.Context(), id.UserID, r.URL.Query().Get("status"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to list payments")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(list, ""))
}

func (h *PaymentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	stats, err := h.payments.Stats(r.Context(), id.UserID)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to compute payment stats")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(stats, ""))
}

func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to create payment order")
		return
	}
	order, err := h.payments.CreateOrder(r.Context(), id.UserID, &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to create payment order")
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, successResponse(order, "Payment order created"))
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.VerifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to verify payment")
		return
	}
	p, err := h.payments.Verify(r.Context(), id.UserID, &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to verify payment")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(p, "Payment verified"))
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	p, err := h.payments.Get(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to get payment")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(p, ""))
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	p, err := h.payments.Refund(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to refund payment")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(p, "Payment refunded"))
}

func (h *PaymentHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	entries, err := h.payments.Ledger(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to read payment ledger")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(entries, ""))
}

func (h *PaymentHandler) ListMethods(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	list, err := h.methods.List(r.Context(), id.UserID)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to list payment methods")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(list, ""))
}

func (h *PaymentHandler) CreateMethod(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.CreatePaymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to save payment method")
		return
	}
	m, err := h.methods.Create(r.Context(), id.UserID, &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to save payment method")
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, successResponse(m, "Payment method saved"))
}

func (h *PaymentHandler) GetMethod(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	m, err := h.methods.Get(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to get payment method")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(m, ""))
}

func (h *PaymentHandler) UpdateMethod(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.UpdatePaymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update payment method")
		return
	}
	m, err := h.methods.Update(r.Context(), id.UserID, chi.URLParam(r, "id"), &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update payment method")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(m, "Payment method updated"))
}

func (h *PaymentHandler) DeleteMethod(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	deleted, err := h.methods.Delete(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to delete payment method")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(map[string]bool{"deleted": deleted}, ""))
}
