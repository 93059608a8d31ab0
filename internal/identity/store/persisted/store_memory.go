package persisted

import (
	"context"
	"sync"

	"propmaster/internal/session/models"
)

// InMemoryStore keeps the encoded session blob in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	blob []byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Load returns nil when nothing is stored. A blob that cannot be decoded
// yields an error wrapping sentinel.ErrInvalidState.
func (s *InMemoryStore) Load(_ context.Context) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.blob == nil {
		return nil, nil
	}
	return decode(s.blob)
}

func (s *InMemoryStore) Save(_ context.Context, session *models.Session) error {
	raw, err := encode(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = raw
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = nil
	return nil
}

// SetRaw stores raw bytes as-is. Used to simulate tampered local storage.
func (s *InMemoryStore) SetRaw(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = append([]byte(nil), raw...)
}
