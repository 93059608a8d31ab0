// Package persisted stores the provider's session artifacts between process
// starts. Only the identity provider client writes here; resets clear it.
package persisted

import (
	"encoding/json"
	"fmt"

	"propmaster/internal/session/models"
	"propmaster/pkg/platform/sentinel"
)

// DefaultKey is the storage key of the session blob.
const DefaultKey = "propmaster-auth-token"

func encode(session *models.Session) ([]byte, error) {
	return json.Marshal(session)
}

// decode rejects blobs that do not describe a usable session.
func decode(raw []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode persisted session: %w: %v", sentinel.ErrInvalidState, err)
	}
	if session.AccessToken == "" || session.User.ID.IsNil() {
		return nil, fmt.Errorf("persisted session missing token or subject: %w", sentinel.ErrInvalidState)
	}
	return &session, nil
}
