package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/service"
)

type AppointmentHandler struct {
	booking *service.BookingService
	logger  *zap.Logger
}

func NewAppointmentHandler(booking *service.BookingService, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{booking: booking, logger: logger}
}

func (h *AppointmentHandler) RegisterProtected(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Post("/{id}/cancel", h.Cancel)
	})
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	list, err := h.booking.List(r.Context(), id.UserID, r.URL.Query().Get("status"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to list appointments")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(list, ""))
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to book appointment")
		return
	}
	appt, err := h.booking.Create(r.Context(), id.UserID, &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to book appointment")
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, successResponse(appt, "Appointment booked"))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	appt, err := h.booking.Get(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to get appointment")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(appt, ""))
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.UpdateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update appointment")
		return
	}
	appt, err := h.booking.Update(r.Context(), id.UserID, chi.URLParam(r, "id"), &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update appointment")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(appt, "Appointment updated"))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	appt, err := h.booking.Cancel(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to cancel appointment")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(appt, "Appointment cancelled"))
}
