package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/service"
)

// AuthHandler serves OTP sign-in and the caller's profile.
type AuthHandler struct {
	auth    *service.AuthService
	profile *service.ProfileService
	logger  *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, profile *service.ProfileService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, profile: profile, logger: logger}
}

func (h *AuthHandler) RegisterPublic(r chi.Router) {
	r.Post("/auth/otp", h.SendOTP)
	r.Post("/auth/verify", h.VerifyOTP)
}

func (h *AuthHandler) RegisterProtected(r chi.Router) {
	r.Post("/auth/refresh", h.Refresh)
	r.Get("/me", h.Me)
	r.Patch("/me", h.UpdateMe)
}

func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req service.SendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to send OTP")
		return
	}
	if err := h.auth.SendOTP(r.Context(), &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to send OTP")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(true, "OTP sent successfully"))
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to verify OTP")
		return
	}
	res, err := h.auth.VerifyOTP(r.Context(), &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to verify OTP")
		return
	}
	status := http.StatusOK
	if res.IsNewUser {
		status = http.StatusCreated
	}
	respondWithJSON(h.logger, w, status, successResponse(res, "Signed in"))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	res, err := h.auth.RefreshToken(r.Context(), id)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to refresh token")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(res, "Token refreshed"))
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	user, err := h.profile.Me(r.Context(), id.UserID)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to load profile")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(user, ""))
}

func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req service.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update profile")
		return
	}
	user, err := h.profile.UpdateProfile(r.Context(), id.UserID, &req)
	if err != nil {
		respondWithError(h.logger, w, r, err, "Failed to update profile")
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, successResponse(user, "Profile updated"))
}
