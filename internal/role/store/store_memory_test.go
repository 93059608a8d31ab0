package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	dErrors "propmaster/pkg/domain-errors"
	"propmaster/pkg/platform/sentinel"
)

func TestInMemoryStore_GetRoleForSubject(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.Put("u1", domain.RoleLandlord)
	s.Put("u2", domain.Role("admin"))

	t.Run("found", func(t *testing.T) {
		role, err := s.GetRoleForSubject(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleLandlord, role)
	})

	t.Run("missing row", func(t *testing.T) {
		_, err := s.GetRoleForSubject(ctx, "nobody")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := s.GetRoleForSubject(ctx, "u2")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProfileLookup))
	})

	t.Run("deleted", func(t *testing.T) {
		s.Delete("u1")
		_, err := s.GetRoleForSubject(ctx, "u1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryStore_Fault(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.Put("u1", domain.RoleTenant)

	boom := errors.New("boom")
	s.SetFault(func(subject domain.SubjectID) error {
		if subject == "u1" {
			return boom
		}
		return nil
	})
	_, err := s.GetRoleForSubject(ctx, "u1")
	assert.ErrorIs(t, err, boom)

	s.SetFault(nil)
	role, err := s.GetRoleForSubject(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTenant, role)
}

func TestInMemoryStore_CreateProfile(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	err := s.CreateProfile(ctx, models.User{ID: "u9"}, models.Metadata{DisplayName: "Nine"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	require.NoError(t, s.CreateProfile(ctx, models.User{ID: "u9"}, models.Metadata{Role: domain.RoleCompany}))
	role, err := s.GetRoleForSubject(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCompany, role)
}
