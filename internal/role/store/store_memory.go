package store

import (
	"context"
	"fmt"
	"sync"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

// Fault, when set, is returned by GetRoleForSubject instead of a lookup.
type Fault func(subject domain.SubjectID) error

type InMemoryStore struct {
	mu    sync.RWMutex
	roles map[domain.SubjectID]domain.Role
	fault Fault
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{roles: make(map[domain.SubjectID]domain.Role)}
}

func (s *InMemoryStore) GetRoleForSubject(_ context.Context, subject domain.SubjectID) (domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fault != nil {
		if err := s.fault(subject); err != nil {
			return "", err
		}
	}
	role, ok := s.roles[subject]
	if !ok {
		return "", fmt.Errorf("profile %s: %w", subject, sentinel.ErrNotFound)
	}
	if !role.IsValid() {
		return "", dErrors.New(dErrors.CodeProfileLookup, "profile holds an unknown role")
	}
	return role, nil
}

// Put stores role as given, without validation, so tests can seed bad rows.
func (s *InMemoryStore) Put(subject domain.SubjectID, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[subject] = role
}

func (s *InMemoryStore) Delete(subject domain.SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, subject)
}

// SetFault installs or, with nil, removes the fault hook.
func (s *InMemoryStore) SetFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *InMemoryStore) CreateProfile(_ context.Context, user models.User, meta models.Metadata) error {
	if !meta.Role.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "sign-up role is required")
	}
	s.Put(user.ID, meta.Role)
	return nil
}
