package auth

import "context"

// Roles supported by the RBAC system. RoleAdmin gates the administrative
// routes; the manual check-in, trustee registration and letter routes only
// require a valid session, and the rest of the HTTP surface is either public
// (check-in, trustee access) or keyed by a high-entropy token.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRoles lists all known roles in descending privilege order.
var ValidRoles = []string{RoleAdmin, RoleUser}

// Method describes how the caller was authenticated.
const (
	MethodSession = "session"
)

// Identity represents the authenticated caller for the current request.
type Identity struct {
	Subject string // display name
	Email   string
	Role    string // one of the Role* constants
	UserID  string
	Method  string // one of the Method* constants
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if no
// identity is set.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}

// IsValidRole reports whether role is a recognised RBAC role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
