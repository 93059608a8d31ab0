// Package ports defines the collaborators the session controller depends on.
package ports

import (
	"context"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	"propmaster/pkg/platform/audit"
)

// Subscription is a disposable provider registration.
type Subscription interface {
	// Unsubscribe releases the registration. Safe to call more than once.
	Unsubscribe()
}

// IdentityProvider is the client-side contract of the identity provider.
type IdentityProvider interface {
	// GetPersistedSession returns the locally persisted session, refreshed if
	// close to expiry, or nil when none exists.
	// Errors: CodeProviderUnavailable, CodeStaleToken.
	GetPersistedSession(ctx context.Context) (*models.Session, error)

	// SignOut revokes the session remotely and clears local artifacts.
	// Errors: CodeProviderUnavailable (local artifacts are kept).
	SignOut(ctx context.Context) error

	// ForgetLocal drops the held session and its persisted artifacts without
	// contacting the provider, and emits SignedOut. Used when SignOut failed.
	ForgetLocal(ctx context.Context) error

	// OnSessionEvent registers fn for every provider event in emit order.
	OnSessionEvent(fn func(models.Event)) Subscription
}

// RoleStore resolves the authorization role of a subject.
type RoleStore interface {
	// GetRoleForSubject returns the stored role.
	// Errors: sentinel.ErrNotFound (no profile row), CodeProfileLookup
	// (lookup-layer failure), anything else is transient.
	GetRoleForSubject(ctx context.Context, subject domain.SubjectID) (domain.Role, error)
}

// PersistedSessionStore is the local session artifact storage.
type PersistedSessionStore interface {
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Clear(ctx context.Context) error
}

// AuditPublisher emits audit events for session transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
