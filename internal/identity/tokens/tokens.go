// Package tokens turns identity provider token responses into sessions.
package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/email"
)

// Claims is the access token payload issued by GoTrue compatible providers.
// Role here is the database role ("authenticated"), not the application role.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// Response is the token endpoint payload.
type Response struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at,omitempty"`
	RefreshToken string      `json:"refresh_token"`
	User         UserPayload `json:"user"`
}

type UserPayload struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// UserMetadata mirrors models.Metadata as stored by the provider.
type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Decode reads the claims of an access token without verifying the
// signature. The controller trusts the provider's transport, not the token.
func Decode(accessToken string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "malformed access token")
	}
	return claims, nil
}

// SessionFromResponse builds a Session from a token response. The token's
// subject must match the user payload when the payload carries an id.
func SessionFromResponse(resp *Response) (*models.Session, error) {
	if resp == nil || resp.AccessToken == "" {
		return nil, dErrors.New(dErrors.CodeProviderUnavailable, "token response without access token")
	}
	claims, err := Decode(resp.AccessToken)
	if err != nil {
		return nil, err
	}

	subject, err := domain.ParseSubjectID(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "access token without usable subject")
	}
	if resp.User.ID != "" && resp.User.ID != claims.Subject {
		return nil, dErrors.New(dErrors.CodeProviderUnavailable, "token subject does not match user payload")
	}
	if claims.ExpiresAt == nil {
		return nil, dErrors.New(dErrors.CodeProviderUnavailable, "access token without expiry")
	}

	expiresAt := claims.ExpiresAt.Time
	issuedAt := expiresAt.Add(-time.Duration(resp.ExpiresIn) * time.Second)
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	emailAddr := resp.User.Email
	if emailAddr == "" {
		emailAddr = claims.Email
	}
	// The hint is informational; unknown values are dropped.
	hint, _ := domain.ParseRole(resp.User.UserMetadata.Role)

	displayName := resp.User.UserMetadata.FullName
	if displayName == "" {
		displayName = email.DisplayName(emailAddr)
	}

	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &models.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    tokenType,
		IssuedAt:     issuedAt.UTC(),
		ExpiresAt:    expiresAt.UTC(),
		User: models.User{
			ID:          subject,
			Email:       emailAddr,
			DisplayName: displayName,
			RoleHint:    hint,
		},
	}, nil
}
