package models

import (
	"time"

	"propmaster/pkg/domain"
)

// User is the provider's view of the authenticated subject.
type User struct {
	ID          domain.SubjectID `json:"id"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name,omitempty"`
	// RoleHint is the role requested at sign-up. It is never trusted as the
	// subject's role; only the role lookup is.
	RoleHint domain.Role `json:"role_hint,omitempty"`
}

// Session is the credential bundle issued by the identity provider. Values are
// replaced wholesale on every provider event and never mutated in place.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Subject returns the subject id the session was issued for.
func (s *Session) Subject() domain.SubjectID {
	if s == nil {
		return ""
	}
	return s.User.ID
}

// IsExpired reports whether the access token is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(d))
}

// Metadata is attached to a sign-up and copied into the user's profile by
// the provider-side trigger.
type Metadata struct {
	DisplayName string      `json:"full_name"`
	Role        domain.Role `json:"role"`
}
