package audit

import (
	"context"
	"time"

	"propmaster/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention.
type EventCategory string

const (
	// CategorySecurity covers forced sign-outs and rejected credentials.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine session lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the session controller to capture key transitions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory    `json:"category"`
	Timestamp time.Time        `json:"timestamp"`
	SubjectID domain.SubjectID `json:"subject_id,omitempty"`
	Action    string           `json:"action"`
	Role      domain.Role      `json:"role,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	// Origin is the instance id that observed the event first.
	Origin string `json:"origin,omitempty"`
}

type AuditEvent string

const (
	EventSessionBootstrapped AuditEvent = "session_bootstrapped"
	EventSessionSignedIn     AuditEvent = "session_signed_in"
	EventSessionSignedOut    AuditEvent = "session_signed_out"
	EventSessionRefreshed    AuditEvent = "session_refreshed"
	EventSessionReset        AuditEvent = "session_reset"
	EventRoleResolved        AuditEvent = "role_resolved"
	EventRoleDiscarded       AuditEvent = "role_discarded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSessionReset:  CategorySecurity,
	EventRoleDiscarded: CategorySecurity,

	EventSessionBootstrapped: CategoryOperations,
	EventSessionSignedIn:     CategoryOperations,
	EventSessionSignedOut:    CategoryOperations,
	EventSessionRefreshed:    CategoryOperations,
	EventRoleResolved:        CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject domain.SubjectID) ([]Event, error)
}

// Sink receives a copy of every event after it reached the Store.
// Sinks are best effort: failures never fail the emitting operation.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
