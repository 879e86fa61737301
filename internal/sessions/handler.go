package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayursutra/therapy-portal/internal/http/middleware"
	"github.com/ayursutra/therapy-portal/pkg/logging"
)

// Notifier receives best-effort booking lifecycle events. Failures never
// affect the HTTP response.
type Notifier interface {
	SessionBooked(ctx context.Context, s *Session)
	SessionCancelled(ctx context.Context, s *Session)
}

// Handler handles HTTP requests for session scheduling.
type Handler struct {
	service  *Service
	notifier Notifier
	logger   *logging.Logger
}

// NewHandler creates a sessions handler. notifier may be nil.
func NewHandler(service *Service, notifier Notifier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, notifier: notifier, logger: logger}
}

// Create handles POST /api/schedules.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), claims.Subject, claims.Role, &req)
	if err != nil {
		h.writeServiceError(w, err, "create session")
		return
	}

	h.notify(func(ctx context.Context, n Notifier) { n.SessionBooked(ctx, created) })
	writeJSON(w, http.StatusCreated, map[string]any{"item": created})
}

// ListMine handles GET /api/schedules (patient view).
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, RolePatient)
}

// ListForDoctor handles GET /api/schedules/for-doctor.
func (h *Handler) ListForDoctor(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, RoleDoctor)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, role string) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.service.List(r.Context(), claims.Subject, role, r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, err, "list sessions")
		return
	}
	if items == nil {
		items = []*Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Complete handles POST /api/schedules/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ActionComplete)
}

// Cancel handles POST /api/schedules/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, ActionCancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action Action) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id")
		return
	}

	updated, err := h.service.Transition(r.Context(), id, claims.Subject, claims.Role, action)
	if err != nil {
		h.writeServiceError(w, err, "transition session")
		return
	}

	if action == ActionCancel {
		h.notify(func(ctx context.Context, n Notifier) { n.SessionCancelled(ctx, updated) })
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": updated})
}

// UpdateProgress handles POST /api/schedules/{id}/progress.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "malformed session id")
		return
	}

	var req UpdateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.service.UpdateProgress(r.Context(), id, claims.Subject, &req)
	if err != nil {
		h.writeServiceError(w, err, "update progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": updated})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	if verrs, ok := AsValidationErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": verrs})
		return
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, ErrSlotConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid action")
	case errors.Is(err, ErrUnknownRole):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		h.logger.Error("sessions handler error", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected server error")
	}
}

func (h *Handler) notify(fn func(context.Context, Notifier)) {
	if h.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		fn(ctx, h.notifier)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
