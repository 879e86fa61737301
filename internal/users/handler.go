// Package users exposes the identity-directory endpoints the dashboards
// consume. The portal holds no user records of its own.
package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayursutra/therapy-portal/internal/http/middleware"
	"github.com/ayursutra/therapy-portal/internal/identity"
	"github.com/ayursutra/therapy-portal/pkg/logging"
)

// Handler handles HTTP requests for the user directory.
type Handler struct {
	provider identity.Provider
	logger   *logging.Logger
}

// NewHandler creates a users handler.
func NewHandler(provider identity.Provider, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{provider: provider, logger: logger}
}

// Me handles GET /api/users/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.provider.GetUser(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to fetch current user", "error", err, "user_id", claims.Subject)
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"item": user})
}

// ListPatients handles GET /api/users/patients. Doctor-only; returns every
// directory entry with the patient role, excluding the caller.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	all, err := h.provider.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch patients")
		return
	}

	patients := make([]*identity.User, 0)
	for _, u := range all {
		if u.Role == "patient" && u.ID != claims.Subject {
			patients = append(patients, u)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": patients})
}

// SetRoleRequest is the body for POST /api/users/role.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// SetRole handles POST /api/users/role: self-service role selection made
// once after signup.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.provider.SetRole(r.Context(), claims.Subject, req.Role)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidRole) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to set role", "error", err, "user_id", claims.Subject)
		writeError(w, http.StatusInternalServerError, "failed to set role")
		return
	}

	h.logger.Info("role assigned", "user_id", claims.Subject, "role", req.Role)
	writeJSON(w, http.StatusOK, map[string]any{"item": user})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
