//go:build integration

package persisted

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propmaster/pkg/platform/sentinel"
	"propmaster/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)

	store := NewRedisStore(rc.Client, WithKey("test-auth-token"), WithTTL(time.Minute))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, testSession()))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSession(), got)

	ttl, err := rc.Client.TTL(ctx, "test-auth-token").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, rc.Client.Set(ctx, "test-auth-token", "garbage", 0).Err())
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
