package auth

// Status is the outcome of a session check
type Status string

const (
	// StatusAnonymous means no local session exists
	StatusAnonymous Status = "anonymous"
	// StatusAuthenticated means the local session is (or is assumed) valid
	StatusAuthenticated Status = "authenticated"
	// StatusAccessRevoked means the account was removed by an admin
	StatusAccessRevoked Status = "access_revoked"
	// StatusTokenExpired means the invitation token's access period passed
	StatusTokenExpired Status = "token_expired"
	// StatusTokenDeactivated means the token was unassigned or replaced by an admin
	StatusTokenDeactivated Status = "token_deactivated"
)

// Cleared reports whether the status clears the local session and
// sends the client back to the landing page.
func (s Status) Cleared() bool {
	switch s {
	case StatusAccessRevoked, StatusTokenExpired, StatusTokenDeactivated:
		return true
	default:
		return false
	}
}

// LoginRequest is the sign-in form payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the sign-up form payload
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// Identity is what the middleware places in the request context
type Identity struct {
	UserID    string
	Username  string
	SessionID string
	ClientKey string
	IsAdmin   bool
}
