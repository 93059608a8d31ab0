package models

import (
	"propmaster/pkg/domain"
)

// Phase is the controller's position in its lifecycle, derived from State.
type Phase string

const (
	PhaseUninitialized    Phase = "UNINITIALIZED"
	PhaseReadyGuest       Phase = "READY_GUEST"
	PhaseReadyRolePending Phase = "READY_ROLE_PENDING"
	PhaseReadyWithRole    Phase = "READY_WITH_ROLE"
)

// State is the externally observable tuple {session, role, ready}. Readers
// get copies; only the session service writes.
type State struct {
	Session *Session
	Role    domain.Role
	Ready   bool
	// Err holds the last provider outage surfaced to the UI. It is cleared by
	// the next successful transition.
	Err error
	// Version increases with every committed change.
	Version uint64
}

// Phase derives the lifecycle phase. Role-dependent content may render only
// in PhaseReadyWithRole; PhaseReadyRolePending must render a neutral loading
// indicator, never a login prompt.
func (s State) Phase() Phase {
	switch {
	case !s.Ready:
		return PhaseUninitialized
	case s.Session == nil:
		return PhaseReadyGuest
	case s.Role.IsZero():
		return PhaseReadyRolePending
	default:
		return PhaseReadyWithRole
	}
}

func (s State) Authenticated() bool {
	return s.Session != nil
}

func (s State) Subject() domain.SubjectID {
	return s.Session.Subject()
}
