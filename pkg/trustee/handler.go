package trustee

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eternalsentinel/sentinel/internal/audit"
	"github.com/eternalsentinel/sentinel/internal/auth"
	"github.com/eternalsentinel/sentinel/internal/db"
	"github.com/eternalsentinel/sentinel/internal/httpserver"
	"github.com/eternalsentinel/sentinel/internal/storeerr"
	"github.com/eternalsentinel/sentinel/pkg/vault"
)

// Handler provides the HTTP entry points for trustee verification and
// trustee-facing vault access.
type Handler struct {
	dbtx    db.DBTX
	service *Service
	vault   *vault.Store
	logger  *slog.Logger
	audit   *audit.Writer
}

// NewHandler creates a trustee Handler.
func NewHandler(dbtx db.DBTX, service *Service, logger *slog.Logger, auditWriter *audit.Writer) *Handler {
	return &Handler{dbtx: dbtx, service: service, vault: vault.NewStore(dbtx), logger: logger, audit: auditWriter}
}

// PublicRoutes returns the trustee routes mounted at /trustee: verification
// and access-token-gated vault retrieval are unauthenticated (the token
// itself is the credential); registering a trustee is session-gated since a
// trustee is always created on behalf of the signed-in user.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/verify", h.handleVerify)
	r.Get("/access", h.handleAccessStatus)
	r.Post("/access", h.handleAccess)
	r.With(auth.RequireAuth).Post("/", h.handleCreate)
	return r
}

// AdminRoutes returns the administrative trustee routes, mounted by the
// caller behind auth.RequireRole(auth.RoleAdmin).
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/revoke", h.handleRevoke)
	return r
}

type createRequest struct {
	Name         string  `json:"name" validate:"required"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        *string `json:"phone"`
	Relationship *string `json:"relationship"`
}

// createResponse omits VerificationToken/AccessToken: neither should ever
// reach an HTTP client outside the verify/access flows those tokens gate.
type createResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	Relationship *string   `json:"relationship,omitempty"`
	Status       Status    `json:"status"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil || id.UserID == "" {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid user id in session")
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.service.Create(r.Context(), CreateRequest{
		UserID:       userID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Relationship: req.Relationship,
	})
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, &userID, "TRUSTEE_CREATED", nil)
	}

	httpserver.Respond(w, http.StatusCreated, createResponse{
		ID:           t.ID,
		Name:         t.Name,
		Email:        t.Email,
		Phone:        t.Phone,
		Relationship: t.Relationship,
		Status:       t.Status,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "token is required")
		return
	}

	t, err := h.service.VerifyByToken(r.Context(), tok, time.Now().UTC())
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	if h.audit != nil {
		h.audit.LogFromRequest(r, &t.UserID, "TRUSTEE_VERIFIED", nil)
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"status": t.Status})
}

type accessStatusResponse struct {
	TrusteeName     string    `json:"trusteeName"`
	UserName        string    `json:"userName"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

func (h *Handler) handleAccessStatus(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "token is required")
		return
	}

	info, err := h.service.LookupAccessToken(r.Context(), tok, time.Now().UTC())
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	var userName string
	if err := h.dbtx.QueryRow(r.Context(), `SELECT display_name FROM users WHERE id = $1`, info.UserID).Scan(&userName); err != nil {
		h.logger.Error("loading user for trustee access status", "error", err)
	}

	httpserver.Respond(w, http.StatusOK, accessStatusResponse{
		TrusteeName:     info.Trustee.Name,
		UserName:        userName,
		AccessExpiresAt: *info.Trustee.AccessExpiresAt,
	})
}

type accessRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

type vaultItemResponse struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Name          string    `json:"name"`
	EncryptedData []byte    `json:"encryptedData"`
	Nonce         []byte    `json:"nonce"`
	Metadata      []byte    `json:"metadata"`
	CreatedAt     time.Time `json:"createdAt"`
}

type accessResponse struct {
	Vault struct {
		EncryptedMasterKey string              `json:"encryptedMasterKey"`
		MasterKeySalt      string              `json:"masterKeySalt"`
		MasterKeyNonce     string              `json:"masterKeyNonce"`
		Items              []vaultItemResponse `json:"items"`
	} `json:"vault"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	info, err := h.service.LookupAccessToken(r.Context(), req.AccessToken, now)
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	items, masterKey, err := h.vault.ListByUser(r.Context(), info.UserID)
	if err != nil {
		h.logger.Error("loading vault items for trustee access", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load vault")
		return
	}

	var resp accessResponse
	resp.Vault.EncryptedMasterKey = masterKey.EncryptedMasterKey
	resp.Vault.MasterKeySalt = masterKey.MasterKeySalt
	resp.Vault.MasterKeyNonce = masterKey.MasterKeyNonce
	resp.Vault.Items = make([]vaultItemResponse, 0, len(items))
	for _, it := range items {
		resp.Vault.Items = append(resp.Vault.Items, vaultItemResponse{
			ID:            it.ID,
			Type:          it.Type,
			Name:          it.Name,
			EncryptedData: it.EncryptedData,
			Nonce:         it.Nonce,
			Metadata:      it.Metadata,
			CreatedAt:     it.CreatedAt,
		})
	}
	resp.AccessExpiresAt = *info.Trustee.AccessExpiresAt

	if h.audit != nil {
		h.audit.LogFromRequest(r, &info.UserID, "VAULT_ACCESS_VIEWED", nil)
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid trustee ID")
		return
	}

	if err := h.service.Revoke(r.Context(), id); err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	if h.audit != nil {
		actor := auth.FromContext(r.Context())
		var actorID *uuid.UUID
		if actor != nil {
			if parsed, err := uuid.Parse(actor.UserID); err == nil {
				actorID = &parsed
			}
		}
		h.audit.LogFromRequest(r, actorID, "TRUSTEE_REVOKED", nil)
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
