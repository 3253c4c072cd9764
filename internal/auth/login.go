package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/eternalsentinel/sentinel/internal/db"
)

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the JSON response for a successful login.
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// UserInfo is the public user information returned in auth responses.
type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// AuthConfigResponse tells the frontend which auth methods are available.
// There is no SSO integration in scope; this exists so the admin console can
// render a consistent login screen.
type AuthConfigResponse struct {
	LocalEnabled bool `json:"local_enabled"`
}

// LoginHandler handles local email/password login for the admin surface.
type LoginHandler struct {
	sessionMgr *SessionManager
	dbtx       db.DBTX
	logger     *slog.Logger
}

// NewLoginHandler creates a new login handler.
func NewLoginHandler(sm *SessionManager, dbtx db.DBTX, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{sessionMgr: sm, dbtx: dbtx, logger: logger}
}

// HandleLogin authenticates an admin with email/password and returns a session JWT.
// Only users with role=admin can obtain a token here, so the session-scoped
// routes (manual check-in, trustee registration, letters) are reachable only
// with an admin session.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondErr(w, http.StatusBadRequest, "bad_request", "email and password are required")
		return
	}

	row, err := h.findAdminByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Warn("login: user lookup failed", "email", req.Email, "error", err)
		respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	if row.passwordHash == "" {
		h.logger.Warn("login: admin has no password set", "email", req.Email)
		respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.passwordHash), []byte(req.Password)); err != nil {
		respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	token, err := h.sessionMgr.IssueToken(SessionClaims{
		Subject: row.displayName,
		Email:   row.email,
		Role:    RoleAdmin,
		UserID:  row.id,
		Method:  "local",
	})
	if err != nil {
		h.logger.Error("login: issuing token", "error", err)
		respondErr(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User: UserInfo{
			ID:          row.id,
			Email:       row.email,
			DisplayName: row.displayName,
			Role:        RoleAdmin,
		},
	})
}

// HandleAuthConfig returns the available authentication methods.
func (h *LoginHandler) HandleAuthConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, AuthConfigResponse{LocalEnabled: true})
}

// HandleMe returns the current user's info from a session token.
func (h *LoginHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id := FromContext(r.Context())
	if id == nil {
		respondErr(w, http.StatusUnauthorized, "unauthorized", "no valid session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":           id.UserID,
		"email":        id.Email,
		"display_name": id.Subject,
		"role":         id.Role,
	})
}

// HandleLogout is a no-op endpoint for future server-side session revocation.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

type adminRow struct {
	id           string
	email        string
	displayName  string
	passwordHash string
}

func (h *LoginHandler) findAdminByEmail(ctx context.Context, email string) (*adminRow, error) {
	var row adminRow
	var passwordHash *string
	err := h.dbtx.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash FROM users
		 WHERE email = $1 AND role = 'admin' AND is_active = true`,
		email,
	).Scan(&row.id, &row.email, &row.displayName, &passwordHash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("admin not found")
		}
		return nil, fmt.Errorf("looking up admin: %w", err)
	}
	if passwordHash != nil {
		row.passwordHash = *passwordHash
	}
	return &row, nil
}
