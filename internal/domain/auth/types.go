package auth

// Package auth holds the domain types for dashboard sign-in: who the
// clinician is, what they may do, and the server-side session record.
// It is free of transport and storage concerns.

import "time"

// Role is the dashboard authorization level, kept as a string for easy
// persistence.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleClinician Role = "clinician"
	RoleGuest     Role = "guest"
)

// rank orders roles for privilege comparison. Unknown roles rank below
// guest so a corrupted session never gains access.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleClinician:
		return 1
	case RoleGuest:
		return 0
	default:
		return -1
	}
}

// Meets reports whether the role grants at least the privileges of
// required. Guest < Clinician < Admin.
func (r Role) Meets(required Role) bool {
	have, want := r.rank(), required.rank()
	if have < 0 || want < 0 {
		return false
	}
	return have >= want
}

// Identity is the authenticated principal as reported by the identity
// provider. Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID     string // stable identifier (OIDC sub or account name)
	GivenName  string
	FamilyName string
	Email      string
	Groups     []string
	ExpiresAt  time.Time // absolute expiry from the provider token
}

// Session is the server-side record kept for a signed-in user. ID is an
// opaque random identifier carried by the browser cookie.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsGuest reports whether the session carries only guest access.
func (s Session) IsGuest() bool { return s.Role == RoleGuest }

// CanSubmit reports whether the session may submit cases for analysis.
// Guests get read-only access to demo views.
func (s Session) CanSubmit() bool { return s.Role.Meets(RoleClinician) }
