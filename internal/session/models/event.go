package models

import "time"

// EventKind enumerates the provider notifications the synchronizer consumes.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

func (k EventKind) IsValid() bool {
	switch k {
	case EventSignedIn, EventSignedOut, EventTokenRefreshed:
		return true
	}
	return false
}

func (k EventKind) String() string {
	return string(k)
}

// Event is one provider notification. Session is nil for EventSignedOut.
type Event struct {
	Kind       EventKind `json:"kind"`
	Session    *Session  `json:"session,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	// Origin is the instance id of the process that produced the event; empty
	// for events raised locally.
	Origin string `json:"origin,omitempty"`
}

// CarriesSession reports whether the event hands over a session to adopt.
func (e Event) CarriesSession() bool {
	return e.Kind != EventSignedOut && e.Session != nil
}
