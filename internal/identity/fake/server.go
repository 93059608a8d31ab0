// Package fake is an in-process stand-in for the remote auth API used in
// development and tests. It implements identity.Transport.
package fake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"propmaster/internal/identity/tokens"
	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
)

// SignUpHook runs after a user is created, in place of the provider-side
// trigger that writes the profile row.
type SignUpHook func(ctx context.Context, user models.User, meta models.Metadata) error

type user struct {
	id   domain.SubjectID
	hash []byte
	meta models.Metadata
}

type refreshGrant struct {
	email     string
	sessionID string
	expiresAt time.Time
}

type Server struct {
	mu          sync.Mutex
	users       map[string]*user
	grants      map[string]refreshGrant
	issuer      *tokens.Issuer
	clock       clockwork.Clock
	accessTTL   time.Duration
	refreshTTL  time.Duration
	autoConfirm bool
	bcryptCost  int
	onSignUp    SignUpHook
	unavailable bool
}

type Option func(*Server)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = d
	}
}

func WithRefreshTTL(d time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = d
	}
}

// WithEmailConfirmation makes sign-ups return no session, as a provider
// waiting for e-mail confirmation does. Password sign-in still works.
func WithEmailConfirmation() Option {
	return func(s *Server) {
		s.autoConfirm = false
	}
}

func WithSignUpHook(hook SignUpHook) Option {
	return func(s *Server) {
		s.onSignUp = hook
	}
}

// WithBcryptCost lowers the hashing cost, e.g. bcrypt.MinCost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

func New(signingKey string, opts ...Option) *Server {
	s := &Server{
		users:       make(map[string]*user),
		grants:      make(map[string]refreshGrant),
		clock:       clockwork.NewRealClock(),
		accessTTL:   time.Hour,
		refreshTTL:  7 * 24 * time.Hour,
		autoConfirm: true,
		bcryptCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.issuer = tokens.NewIssuer(signingKey, "propmaster-dev", "authenticated", tokens.WithClock(s.clock))
	return s
}

// SetUnavailable makes every call fail as if the provider were unreachable.
func (s *Server) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// RevokeAll invalidates every refresh token, forcing stale-token handling.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = make(map[string]refreshGrant)
}

func (s *Server) SignInWithPassword(_ context.Context, email, password string) (*tokens.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return nil, err
	}

	u, ok := s.users[normalize(email)]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid login credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid login credentials")
	}
	return s.issueLocked(normalize(email), u, uuid.NewString())
}

func (s *Server) RefreshSession(_ context.Context, refreshToken string) (*tokens.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return nil, err
	}

	grant, ok := s.grants[refreshToken]
	if !ok || !grant.expiresAt.After(s.clock.Now()) {
		return nil, dErrors.New(dErrors.CodeStaleToken, "invalid refresh token")
	}
	delete(s.grants, refreshToken)
	u, ok := s.users[grant.email]
	if !ok {
		return nil, dErrors.New(dErrors.CodeStaleToken, "user no longer exists")
	}
	return s.issueLocked(grant.email, u, grant.sessionID)
}

func (s *Server) SignUp(ctx context.Context, email, password string, meta models.Metadata) (*tokens.Response, error) {
	s.mu.Lock()
	if err := s.checkAvailable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	key := normalize(email)
	if _, exists := s.users[key]; exists {
		s.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeValidation, "user already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		s.mu.Unlock()
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "password cannot be used")
	}
	u := &user{id: domain.SubjectID(uuid.NewString()), hash: hash, meta: meta}
	s.users[key] = u
	hook := s.onSignUp
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, models.User{ID: u.id, Email: key, DisplayName: meta.DisplayName, RoleHint: meta.Role}, meta); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "sign-up trigger failed")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.autoConfirm {
		return &tokens.Response{User: s.payload(key, u)}, nil
	}
	return s.issueLocked(key, u, uuid.NewString())
}

// Logout revokes every refresh token of the token's session. Tokens that no
// longer validate count as already signed out.
func (s *Server) Logout(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return err
	}

	claims, err := s.issuer.Validate(accessToken)
	if err != nil {
		return nil
	}
	for token, grant := range s.grants {
		if grant.sessionID == claims.SessionID {
			delete(s.grants, token)
		}
	}
	return nil
}

func (s *Server) issueLocked(email string, u *user, sessionID string) (*tokens.Response, error) {
	access, err := s.issuer.IssueAccessToken(models.User{ID: u.id, Email: email}, sessionID, s.accessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to issue access token")
	}
	refresh := uuid.NewString()
	s.grants[refresh] = refreshGrant{email: email, sessionID: sessionID, expiresAt: s.clock.Now().Add(s.refreshTTL)}

	return &tokens.Response{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int(s.accessTTL / time.Second),
		ExpiresAt:    s.clock.Now().Add(s.accessTTL).Unix(),
		RefreshToken: refresh,
		User:         s.payload(email, u),
	}, nil
}

func (s *Server) payload(email string, u *user) tokens.UserPayload {
	return tokens.UserPayload{
		ID:    u.id.String(),
		Email: email,
		UserMetadata: tokens.UserMetadata{
			FullName: u.meta.DisplayName,
			Role:     u.meta.Role.String(),
		},
	}
}

var errUnavailable = errors.New("connection refused")

func (s *Server) checkAvailable() error {
	if s.unavailable {
		return dErrors.Wrap(errUnavailable, dErrors.CodeProviderUnavailable, "auth server unreachable")
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
