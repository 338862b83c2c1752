package handler

import (
	"net/http"

	"github.com/foldr/foldr-go/internal/model"
	"github.com/foldr/foldr-go/internal/service"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// HandleSignup handles POST /api/auth/signup requests.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if !decodeJSON(w, r, authBodyLimit, &req) {
		return
	}

	resp, err := h.service.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleLogin handles POST /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeJSON(w, r, authBodyLimit, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleChangePassword handles POST /api/auth/change-password requests.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if !decodeJSON(w, r, authBodyLimit, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{Success: true})
}

// HandleResetPassword handles POST /api/auth/reset-password requests.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if !decodeJSON(w, r, authBodyLimit, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{Success: true})
}
