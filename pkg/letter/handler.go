package letter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eternalsentinel/sentinel/internal/audit"
	"github.com/eternalsentinel/sentinel/internal/auth"
	"github.com/eternalsentinel/sentinel/internal/httpserver"
)

// Handler provides the HTTP entry points for a user's final letters.
type Handler struct {
	service *Service
	logger  *slog.Logger
	audit   *audit.Writer
}

// NewHandler creates a letter Handler.
func NewHandler(service *Service, logger *slog.Logger, auditWriter *audit.Writer) *Handler {
	return &Handler{service: service, logger: logger, audit: auditWriter}
}

// Routes returns the session-gated final-letter routes, mounted by the
// caller behind auth.RequireAuth: a letter is always drafted and readied on
// behalf of the signed-in user, never by ID across users.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Post("/{id}/ready", h.handleMarkReady)
	return r
}

type createRequest struct {
	RecipientName  string `json:"recipientName" validate:"required"`
	RecipientEmail string `json:"recipientEmail" validate:"required,email"`
	Subject        string `json:"subject" validate:"required"`
	EncryptedBody  []byte `json:"encryptedBody" validate:"required"`
	Nonce          []byte `json:"nonce" validate:"required"`
}

type letterResponse struct {
	ID             uuid.UUID `json:"id"`
	RecipientName  string    `json:"recipientName"`
	RecipientEmail string    `json:"recipientEmail"`
	Subject        string    `json:"subject"`
	Status         Status    `json:"status"`
}

func toLetterResponse(l FinalLetter) letterResponse {
	return letterResponse{
		ID:             l.ID,
		RecipientName:  l.RecipientName,
		RecipientEmail: l.RecipientEmail,
		Subject:        l.Subject,
		Status:         l.Status,
	}
}

func currentUserID(r *http.Request) (uuid.UUID, bool) {
	id := auth.FromContext(r.Context())
	if id == nil || id.UserID == "" {
		return uuid.UUID{}, false
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return uuid.UUID{}, false
	}
	return userID, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	l, err := h.service.Create(r.Context(), CreateRequest{
		UserID:         userID,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		Subject:        req.Subject,
		EncryptedBody:  req.EncryptedBody,
		Nonce:          req.Nonce,
	})
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, &userID, "LETTER_CREATED", nil)
	}

	httpserver.Respond(w, http.StatusCreated, toLetterResponse(l))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	items, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	resp := make([]letterResponse, 0, len(items))
	for _, l := range items {
		resp = append(resp, toLetterResponse(l))
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"letters": resp,
		"count":   len(resp),
	})
}

func (h *Handler) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid letter ID")
		return
	}

	if err := h.service.MarkReady(r.Context(), id, userID); err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, &userID, "LETTER_READY", nil)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
