package model

import "time"

// Identity sources.
const (
	IdentitySourceManaged  = "managed"
	IdentitySourceFallback = "fallback"
)

// Identity is the operator the process acts on behalf of.
type Identity struct {
	Source  string `json:"source"`
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	// User is the cached fallback record; nil for managed identities.
	User *User `json:"user,omitempty"`
}

// SessionUser is the account behind a managed session.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a managed authentication session.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         SessionUser `json:"user"`
}

// Expired reports whether the session has passed its expiry. A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// IdentityFromSession converts a managed session into an Identity.
func IdentityFromSession(s *Session) *Identity {
	if s == nil {
		return nil
	}
	return &Identity{
		Source:  IdentitySourceManaged,
		Subject: s.User.ID,
		Email:   s.User.Email,
	}
}
