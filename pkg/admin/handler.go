package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eternalsentinel/sentinel/internal/httpserver"
)

// Handler provides the administrative override HTTP entry points. Every
// route here must be mounted behind auth.RequireRole(auth.RoleAdmin) by the
// caller.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates an admin Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns the admin override routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/checkin", h.handleForceCheckIn)
	r.Post("/trigger", h.handleForceTrigger)
	return r
}

type overrideRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type overrideResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleForceCheckIn(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid user id")
		return
	}

	cfg, err := h.service.ForceCheckIn(r.Context(), userID)
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, overrideResponse{Status: string(cfg.Status)})
}

func (h *Handler) handleForceTrigger(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid user id")
		return
	}

	cfg, err := h.service.ForceTrigger(r.Context(), userID)
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, overrideResponse{Status: string(cfg.Status)})
}
