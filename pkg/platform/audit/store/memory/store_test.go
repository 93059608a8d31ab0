package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "propmaster/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Append(ctx, audit.Event{SubjectID: "u1", Action: "a"}))
	require.NoError(t, store.Append(ctx, audit.Event{SubjectID: "u2", Action: "b"}))
	require.NoError(t, store.Append(ctx, audit.Event{SubjectID: "u1", Action: "c"}))

	t.Run("lists per subject in append order", func(t *testing.T) {
		events, err := store.ListBySubject(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "a", events[0].Action)
		assert.Equal(t, "c", events[1].Action)
	})

	t.Run("recent is bounded by limit", func(t *testing.T) {
		events, err := store.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "b", events[0].Action)
		assert.Equal(t, "c", events[1].Action)
	})

	t.Run("clear drops everything", func(t *testing.T) {
		store.Clear()
		events, err := store.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
