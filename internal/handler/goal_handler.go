package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/service"
)

// GoalHandler serves the caller's rehabilitation goals.
type GoalHandler struct {
	goals  *service.GoalService
	logger *zap.Logger
}

func NewGoalHandler(goals *service.GoalService, logger *zap.Logger) *GoalHandler {
	return &GoalHandler{goals: goals, logger: logger}
}

func (h *GoalHandler) RegisterProtected(r chi.Router) {
	r.Route("/goals", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	list, err := h.goals.List(r.Context(), id.UserID, r.URL.Query().Get("status"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to list goals")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(list, ""))
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.CreateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to create goal")
		return
	}
	g, err := h.goals.Create(r.Context(), id.UserID, &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to create goal")
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, successResponse(g, "Goal created"))
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	g, err := h.goals.Get(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to get goal")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(g, ""))
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.UpdateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update goal")
		return
	}
	g, err := h.goals.Update(r.Context(), id.UserID, chi.URLParam(r, "id"), &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update goal")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(g, "Goal updated"))
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	deleted, err := h.goals.Delete(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to delete goal")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(map[string]bool{"deleted": deleted}, ""))
}
