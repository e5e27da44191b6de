package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/service"
)

// DirectoryHandler serves the public center and consultant directory and
// slot availability.
type DirectoryHandler struct {
	directory *service.DirectoryService
	booking   *service.BookingService
	logger    *zap.Logger
}

func NewDirectoryHandler(directory *service.DirectoryService, booking *service.BookingService, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, booking: booking, logger: logger}
}

func (h *DirectoryHandler) RegisterPublic(r chi.Router) {
	r.Get("/centers", h.ListCenters)
	r.Get("/centers/{id}", h.GetCenter)
	r.Get("/consultants", h.ListConsultants)
	r.Get("/consultants/search", h.SearchConsultants)
	r.Get("/consultants/{id}", h.GetConsultant)
	r.Get("/availability", h.CheckAvailability)
}

func (h *DirectoryHandler) ListCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.directory.ListCenters(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to list centers")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(centers, ""))
}

func (h *DirectoryHandler) GetCenter(w http.ResponseWriter, r *http.Request) {
	center, err := h.directory.GetCenter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to get center")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(center, ""))
}

func (h *DirectoryHandler) ListConsultants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.directory.ListConsultants(r.Context(), q.Get("centerId"), q.Get("specialty"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to list consultants")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(list, ""))
}

func (h *DirectoryHandler) SearchConsultants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.directory.SearchConsultants(r.Context(), q.Get("q"), limit)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to search consultants")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(list, ""))
}

func (h *DirectoryHandler) GetConsultant(w http.ResponseWriter, r *http.Request) {
	c, err := h.directory.GetConsultant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to get consultant")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(c, ""))
}

func (h *DirectoryHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	free, err := h.booking.CheckAvailability(r.Context(), &service.AvailabilityRequest{
		ConsultantID: q.Get("consultantId"),
		Date:         q.Get("date"),
		Time:         q.Get("time"),
	})
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to check availability")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(map[string]bool{"available": free}, ""))
}
