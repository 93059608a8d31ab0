// Package identity is the client side of the identity provider: it owns the
// persisted session, talks to the provider transport and emits session
// events to subscribers.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/jonboulle/clockwork"

	"propmaster/internal/identity/tokens"
	"propmaster/internal/platform/metrics"
	"propmaster/internal/session/models"
	"propmaster/internal/session/ports"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

// Transport performs the remote calls against the auth API. Implementations
// return coded errors: CodeInvalidCredentials for rejected sign-ins,
// CodeStaleToken for rejected refresh tokens, CodeValidation for input the
// provider refused, CodeProviderUnavailable for everything unreachable.
type Transport interface {
	SignInWithPassword(ctx context.Context, email, password string) (*tokens.Response, error)
	RefreshSession(ctx context.Context, refreshToken string) (*tokens.Response, error)
	// SignUp returns a response without access token while e-mail
	// confirmation is pending.
	SignUp(ctx context.Context, email, password string, meta models.Metadata) (*tokens.Response, error)
	Logout(ctx context.Context, accessToken string) error
}

const (
	maxEmailLength    = "254"
	minPasswordLength = "6"
	maxPasswordLength = "72"
)

// Client implements ports.IdentityProvider.
type Client struct {
	transport Transport
	store     ports.PersistedSessionStore
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics

	refreshMargin   time.Duration
	refreshInterval time.Duration

	// opMu serializes operations that change the held session, so refresh
	// tokens are never used twice and events are emitted in operation order.
	opMu    sync.Mutex
	current *models.Session
	events  emitter
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRefreshMargin sets how long before expiry a session is refreshed.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshMargin = d
		}
	}
}

// WithRefreshInterval sets the auto refresh tick.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshInterval = d
		}
	}
}

func New(transport Transport, store ports.PersistedSessionStore, opts ...Option) *Client {
	c := &Client{
		transport:       transport,
		store:           store,
		clock:           clockwork.NewRealClock(),
		logger:          slog.Default(),
		refreshMargin:   time.Minute,
		refreshInterval: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the session the client holds, if any.
func (c *Client) Current() *models.Session {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.current
}

// GetPersistedSession loads the stored session. A blob that cannot be read
// back is cleared and treated as no session. A session at or near expiry is
// refreshed first; no event is emitted for that refresh since the caller
// adopts the returned session directly.
func (c *Client) GetPersistedSession(ctx context.Context) (*models.Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	sess, err := c.store.Load(ctx)
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		c.logger.WarnContext(ctx, "discarding unreadable persisted session", "error", err)
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			return nil, dErrors.Wrap(clearErr, dErrors.CodeProviderUnavailable, "failed to clear persisted session")
		}
		c.current = nil
		return nil, nil
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to load persisted session")
	case sess == nil:
		c.current = nil
		return nil, nil
	}

	if !sess.ExpiresWithin(c.clock.Now(), c.refreshMargin) {
		c.current = sess
		return sess, nil
	}

	refreshed, err := c.refreshLocked(ctx, sess)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// SignInWithCredentials validates input, signs in and emits SignedIn.
// Provider rejections are returned unmodified.
func (c *Client) SignInWithCredentials(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "password is required")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	resp, err := c.transport.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	sess, err := tokens.SessionFromResponse(resp)
	if err != nil {
		return nil, err
	}
	if err := c.adoptLocked(ctx, sess); err != nil {
		return nil, err
	}
	c.events.emit(models.Event{Kind: models.EventSignedIn, Session: sess, OccurredAt: c.clock.Now()})
	return sess, nil
}

// SignUp registers a subject. It returns nil without error when the provider
// requires e-mail confirmation before issuing a session.
func (c *Client) SignUp(ctx context.Context, email, password string, meta models.Metadata) (*models.Session, error) {
	email = strings.TrimSpace(email)
	meta.DisplayName = strings.TrimSpace(meta.DisplayName)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if !govalidator.StringLength(password, minPasswordLength, maxPasswordLength) {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be 6 to 72 characters")
	}
	if meta.DisplayName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "display name is required")
	}
	if !meta.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be one of tenant, landlord, company")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	resp, err := c.transport.SignUp(ctx, email, password, meta)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.AccessToken == "" {
		c.logger.InfoContext(ctx, "sign-up pending e-mail confirmation", "email", email)
		return nil, nil
	}
	sess, err := tokens.SessionFromResponse(resp)
	if err != nil {
		return nil, err
	}
	if err := c.adoptLocked(ctx, sess); err != nil {
		return nil, err
	}
	c.events.emit(models.Event{Kind: models.EventSignedIn, Session: sess, OccurredAt: c.clock.Now()})
	return sess, nil
}

// SignOut revokes the held session remotely, then clears local artifacts and
// emits SignedOut. When the remote call fails nothing local changes and a
// CodeProviderUnavailable error is returned.
func (c *Client) SignOut(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	sess := c.current
	if sess == nil {
		stored, err := c.store.Load(ctx)
		if err == nil {
			sess = stored
		}
	}
	if sess != nil {
		if err := c.transport.Logout(ctx, sess.AccessToken); err != nil {
			if !dErrors.HasCode(err, dErrors.CodeProviderUnavailable) {
				err = dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "remote sign-out failed")
			}
			return err
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to clear persisted session")
	}
	c.current = nil
	c.events.emit(models.Event{Kind: models.EventSignedOut, OccurredAt: c.clock.Now()})
	return nil
}

// ForgetLocal drops the held session and the persisted artifacts without a
// remote call, then emits SignedOut so instances sharing the store drop their
// copy as well. The remote session stays valid until it expires.
func (c *Client) ForgetLocal(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.current = nil
	if err := c.store.Clear(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to clear persisted session")
	}
	c.events.emit(models.Event{Kind: models.EventSignedOut, OccurredAt: c.clock.Now()})
	return nil
}

// OnSessionEvent registers fn for every session event.
func (c *Client) OnSessionEvent(fn func(models.Event)) ports.Subscription {
	return c.events.subscribe(fn)
}

// ApplyRemote adopts an event first observed by another instance sharing the
// persisted store and re-emits it locally. The store is not written; the
// originating instance already did.
func (c *Client) ApplyRemote(ev models.Event) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	switch ev.Kind {
	case models.EventSignedOut:
		c.current = nil
	case models.EventSignedIn, models.EventTokenRefreshed:
		if ev.Session == nil {
			return
		}
		c.current = ev.Session
	default:
		return
	}
	c.events.emit(ev)
}

func (c *Client) adoptLocked(ctx context.Context, sess *models.Session) error {
	if err := c.store.Save(ctx, sess); err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "failed to persist session")
	}
	c.current = sess
	return nil
}

// refreshLocked exchanges sess's refresh token. A rejected token clears the
// persisted session.
func (c *Client) refreshLocked(ctx context.Context, sess *models.Session) (*models.Session, error) {
	resp, err := c.transport.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeStaleToken) {
			if newer := c.newerPersistedLocked(ctx, sess); newer != nil {
				c.incrementRefresh("adopted")
				c.current = newer
				return newer, nil
			}
			c.incrementRefresh("rejected")
			c.current = nil
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				c.logger.ErrorContext(ctx, "failed to clear persisted session after rejected refresh", "error", clearErr)
			}
			return nil, err
		}
		c.incrementRefresh("unavailable")
		if !dErrors.HasCode(err, dErrors.CodeProviderUnavailable) {
			err = dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "token refresh failed")
		}
		return nil, err
	}

	refreshed, err := tokens.SessionFromResponse(resp)
	if err != nil {
		c.incrementRefresh("unavailable")
		return nil, err
	}
	if err := c.adoptLocked(ctx, refreshed); err != nil {
		return nil, err
	}
	c.incrementRefresh("ok")
	return refreshed, nil
}

// newerPersistedLocked returns the persisted session when another instance
// sharing the store already rotated sess's refresh token.
func (c *Client) newerPersistedLocked(ctx context.Context, sess *models.Session) *models.Session {
	stored, err := c.store.Load(ctx)
	if err != nil || stored == nil {
		return nil
	}
	if stored.Subject() != sess.Subject() || stored.RefreshToken == sess.RefreshToken {
		return nil
	}
	return stored
}

func (c *Client) incrementRefresh(result string) {
	if c.metrics != nil {
		c.metrics.IncrementTokenRefresh(result)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if !govalidator.StringLength(email, "1", maxEmailLength) || !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	return nil
}
