package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/TaichKarna/levlelup/internal/services"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides profile and password endpoints for the
// authenticated user.
type UserHandler struct {
	users        *services.UserService
	universities *services.UniversityService
}

func NewUserHandler(users *services.UserService, universities *services.UniversityService) *UserHandler {
	return &UserHandler{users: users, universities: universities}
}

// UserRouter registers user routes on the given router. All routes
// require authentication.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/profile", handler.GetProfile)
	r.Put("/profile", handler.UpdateProfile)
	r.Put("/password", handler.UpdatePassword)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := authFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	var universityName string
	if user.UniversityID != 0 {
		if uni, err := h.universities.GetByID(r.Context(), user.UniversityID); err == nil {
			universityName = uni.Name
		}
	}
	writeJSON(w, http.StatusOK, sanitizeUser(user, universityName))
}

type UpdateProfileRequest struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := authFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), claims.UserID, strings.TrimSpace(req.Username), req.ProfilePicture)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			writeError(w, http.StatusBadRequest, "username already taken")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}
	writeJSON(w, http.StatusOK, sanitizeUser(user, ""))
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := authFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "new password is required")
		return
	}

	if err := h.users.UpdatePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrPasswordMismatch):
			writeError(w, http.StatusBadRequest, "current password is incorrect")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update password")
		}
		return
	}
	writeMessage(w, http.StatusOK, "password updated successfully")
}
