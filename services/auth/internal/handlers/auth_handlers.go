package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dealcart/deals-platform/pkg/logger"
	"github.com/dealcart/deals-platform/services/auth/internal/domain"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	// Role is not caller-controlled on the public endpoint.
	req.Role = domain.RoleCustomer.String()

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "already exists"):
			writeError(w, http.StatusConflict, "A user with this email already exists", "EMAIL_TAKEN")
		case strings.Contains(err.Error(), "validation failed"):
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "VALIDATION_FAILED")
		default:
			logger.ErrorContext(r.Context(), "Failed to register user", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to register user", "INTERNAL_ERROR")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user.ToUserInfo())
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "invalid credentials"):
			writeError(w, http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS")
		case strings.Contains(err.Error(), "not verified"):
			writeError(w, http.StatusForbidden, "Email address not verified", "EMAIL_NOT_VERIFIED")
		case strings.Contains(err.Error(), "validation failed"):
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "VALIDATION_FAILED")
		default:
			logger.ErrorContext(r.Context(), "Failed to log in user", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to log in", "INTERNAL_ERROR")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// VerifyEmail consumes a verification token from the email link.
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	verificationToken := r.URL.Query().Get("token")
	if verificationToken == "" {
		writeError(w, http.StatusBadRequest, "Missing verification token", "INVALID_REQUEST")
		return
	}

	user, err := h.authService.VerifyEmail(r.Context(), verificationToken)
	if err != nil {
		if strings.Contains(err.Error(), "invalid verification token") {
			writeError(w, http.StatusNotFound, "Invalid verification token", "NOT_FOUND")
			return
		}
		logger.ErrorContext(r.Context(), "Failed to verify email", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify email", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}

func (h *Handlers) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), strings.ToLower(strings.TrimSpace(req.Email))); err != nil {
		logger.ErrorContext(r.Context(), "Failed to request password reset", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to request password reset", "INTERNAL_ERROR")
		return
	}

	// Same response whether or not the email is registered.
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the email exists, a reset link has been sent",
	})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing session", "UNAUTHORIZED")
		return
	}

	user, err := h.authService.GetUser(r.Context(), claims.Sub)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load user", "INTERNAL_ERROR")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := h.authService.ListUsers(r.Context(), limit, offset)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list users", "INTERNAL_ERROR")
		return
	}

	infos := make([]*domain.UserInfo, 0, len(users))
	for i := range users {
		infos = append(infos, users[i].ToUserInfo())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":  infos,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID", "INVALID_REQUEST")
		return
	}

	user, err := h.authService.GetUser(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load user", "INTERNAL_ERROR")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", "NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID", "INVALID_REQUEST")
		return
	}

	if err := h.authService.DeleteUser(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "Failed to delete user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete user", "INTERNAL_ERROR")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user ID", "INVALID_REQUEST")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
		return
	}

	if err := h.authService.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		if strings.Contains(err.Error(), "invalid role") {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "VALIDATION_FAILED")
			return
		}
		logger.ErrorContext(r.Context(), "Failed to update user role", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update user role", "INTERNAL_ERROR")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
