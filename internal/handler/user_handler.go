package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"voting-platform/internal/domain"
	"voting-platform/internal/middleware"
	"voting-platform/internal/service"
	"voting-platform/pkg/logger"
)

// UserHandler serves the owner's user administration routes
type UserHandler struct {
	users  *service.UserService
	logger *logger.Logger
}

func NewUserHandler(users *service.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// ListUsers handles GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, domain.UsersResponse{Users: users}, h.logger)
}

// UpdateRole handles PATCH /api/users/{userId}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req domain.RoleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	user, err := h.users.UpdateRole(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "userId"), req.Role)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, user, h.logger)
}

// SetBanned handles PATCH /api/users/{userId}/ban
func (h *UserHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	var req domain.BanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	user, err := h.users.SetBanned(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "userId"), req.Banned, req.Reason)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, user, h.logger)
}
