package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware authenticates the caller via the self-issued session JWT and
// stores the resulting Identity in the request context. This is the only
// in-scope authentication surface; its sessions gate the administrative
// routes (via RequireRole) and the session-scoped manual check-in, trustee
// registration and letter routes (via RequireAuth).
//
// If no bearer token is present, the request proceeds unauthenticated
// (identity nil); downstream RequireAuth/RequireRole middleware rejects it
// where authentication is actually required.
func Middleware(sessionMgr *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || sessionMgr == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") && !strings.HasPrefix(authHeader, "bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			rawToken := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(authHeader, "Bearer "), "bearer "))

			claims, err := sessionMgr.ValidateToken(rawToken)
			if err != nil {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session token")
				return
			}

			identity := &Identity{
				Subject: claims.Subject,
				Email:   claims.Email,
				Role:    claims.Role,
				UserID:  claims.UserID,
				Method:  MethodSession,
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}
