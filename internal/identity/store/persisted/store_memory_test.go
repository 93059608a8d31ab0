package persisted

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propmaster/internal/session/models"
	"propmaster/pkg/platform/sentinel"
)

func testSession() *models.Session {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	return &models.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Hour),
		User:         models.User{ID: "u1", Email: "u1@example.test"},
	}
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, testSession()))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSession(), got)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryStore_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	store.SetRaw([]byte("{not json"))
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	store.SetRaw([]byte(`{"access_token":"","user":{"id":"u1"}}`))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}
