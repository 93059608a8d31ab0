package handler

import (
	"time"

	"propmaster/internal/session/models"
)

// StateResponse is the JSON view of the controller tuple. Tokens are never
// exposed.
type StateResponse struct {
	Authenticated bool       `json:"authenticated"`
	Ready         bool       `json:"ready"`
	Phase         string     `json:"phase"`
	Subject       string     `json:"subject,omitempty"`
	Email         string     `json:"email,omitempty"`
	DisplayName   string     `json:"display_name,omitempty"`
	Role          string     `json:"role,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	Version       uint64     `json:"version"`
}

func FromState(st models.State) StateResponse {
	resp := StateResponse{
		Authenticated: st.Authenticated(),
		Ready:         st.Ready,
		Phase:         string(st.Phase()),
		Role:          st.Role.String(),
		Version:       st.Version,
	}
	if st.Session != nil {
		resp.Subject = st.Session.User.ID.String()
		resp.Email = st.Session.User.Email
		resp.DisplayName = st.Session.User.DisplayName
		expires := st.Session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

type SignUpPendingResponse struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Ready   bool              `json:"ready"`
	Failing map[string]string `json:"failing,omitempty"`
}
