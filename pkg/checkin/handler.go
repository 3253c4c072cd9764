package checkin

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eternalsentinel/sentinel/internal/auth"
	"github.com/eternalsentinel/sentinel/internal/db"
	"github.com/eternalsentinel/sentinel/internal/httpserver"
	"github.com/eternalsentinel/sentinel/internal/storeerr"
	"github.com/eternalsentinel/sentinel/pkg/polling"
)

// Handler provides the HTTP entry points into the check-in confirmation path.
type Handler struct {
	dbtx    db.DBTX
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a check-in Handler.
func NewHandler(dbtx db.DBTX, service *Service, logger *slog.Logger) *Handler {
	return &Handler{dbtx: dbtx, service: service, logger: logger}
}

// PublicRoutes returns the unauthenticated check-in routes: status and
// token-based confirmation.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.handleStatus)
	r.Post("/confirm", h.handleConfirm)
	return r
}

// AuthenticatedRoute returns the session-gated manual confirmation handler,
// mounted by the caller behind auth.RequireAuth.
func (h *Handler) AuthenticatedRoute() http.HandlerFunc {
	return h.handleManualConfirm
}

type statusResponse struct {
	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsExpired bool      `json:"isExpired"`
	UserName  string    `json:"userName"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "token is required")
		return
	}

	store := NewStore(h.dbtx)
	c, err := store.GetByToken(r.Context(), tok)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "check-in not found")
			return
		}
		h.logger.Error("loading check-in", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load check-in")
		return
	}

	var userName string
	if err := h.dbtx.QueryRow(r.Context(), `SELECT display_name FROM users WHERE id = $1`, c.UserID).Scan(&userName); err != nil {
		h.logger.Error("loading user for check-in status", "error", err)
	}

	now := time.Now().UTC()
	httpserver.Respond(w, http.StatusOK, statusResponse{
		Status:    c.Status,
		ExpiresAt: c.ExpiresAt,
		IsExpired: c.IsExpired(now),
		UserName:  userName,
	})
}

type confirmRequest struct {
	Token string `json:"token" validate:"required"`
}

type confirmResponse struct {
	NextCheckInDue time.Time `json:"nextCheckInDue"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.ConfirmByToken(r.Context(), req.Token, time.Now().UTC(), observerFromRequest(r))
	if err != nil {
		if errors.Is(err, storeerr.ErrAlreadyResolved) {
			// Idempotent at the token level: repeated confirmation of an
			// already-CONFIRMED check-in reports current status, not an error.
			store := NewStore(h.dbtx)
			if c, getErr := store.GetByToken(r.Context(), req.Token); getErr == nil && c.Status == StatusConfirmed {
				var nextDue time.Time
				if cfg, cfgErr := polling.NewStore(h.dbtx).GetByUserID(r.Context(), c.UserID); cfgErr == nil {
					nextDue = cfg.NextCheckInDue
				} else {
					h.logger.Error("loading polling config for confirmed replay", "error", cfgErr, "userId", c.UserID)
				}
				httpserver.Respond(w, http.StatusOK, confirmResponse{NextCheckInDue: nextDue})
				return
			}
		}
		httpserver.RespondStoreError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, confirmResponse{NextCheckInDue: result.NextCheckInDue})
}

func (h *Handler) handleManualConfirm(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.service.ConfirmLatestForUser(r.Context(), userID, time.Now().UTC(), observerFromRequest(r))
	if err != nil {
		httpserver.RespondStoreError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, confirmResponse{NextCheckInDue: result.NextCheckInDue})
}

// observerFromRequest extracts the IP and user agent to attach to a
// confirmation's audit entry, preferring X-Forwarded-For / X-Real-IP over
// RemoteAddr the same way the audit package's request logging does.
func observerFromRequest(r *http.Request) Observer {
	var obs Observer
	if addr := clientIP(r); addr.IsValid() {
		obs.IPAddress = &addr
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		obs.UserAgent = &ua
	}
	return obs
}

func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
