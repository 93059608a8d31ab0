package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"propmaster/internal/session/models"
	"propmaster/pkg/platform/sentinel"
)

// Issuer signs HS256 access tokens in the provider's claim layout. Only the
// in-process development provider uses it; real deployments sign remotely.
type Issuer struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      clockwork.Clock
}

type IssuerOption func(*Issuer)

func WithClock(clock clockwork.Clock) IssuerOption {
	return func(i *Issuer) {
		i.clock = clock
	}
}

func NewIssuer(signingKey, issuer, audience string, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IssueAccessToken signs a token for user valid for ttl from now.
func (i *Issuer) IssueAccessToken(user models.User, sessionID string, ttl time.Duration) (string, error) {
	now := i.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:     user.Email,
		Role:      "authenticated",
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry. Expired tokens wrap
// sentinel.ErrExpired, anything else sentinel.ErrRejected.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	}, jwt.WithTimeFunc(i.clock.Now), jwt.WithIssuer(i.issuer), jwt.WithAudience(i.audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("access token: %w", sentinel.ErrExpired)
		}
		return nil, fmt.Errorf("access token: %w: %v", sentinel.ErrRejected, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("access token claims: %w", sentinel.ErrRejected)
	}
	return claims, nil
}
