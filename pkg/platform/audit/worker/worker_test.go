package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "propmaster/pkg/platform/audit"
	"propmaster/pkg/platform/audit/store/memory"
)

func TestWorker_DrainsInboxUntilClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 3)
	inbox <- audit.Event{SubjectID: "u1", Action: string(audit.EventSessionSignedIn)}
	inbox <- audit.Event{SubjectID: "u1", Action: string(audit.EventRoleResolved)}
	close(inbox)

	err := NewWorker(store, inbox, nil).Run(context.Background())
	require.NoError(t, err)

	events, err := store.ListBySubject(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWorker(memory.NewInMemoryStore(), make(chan audit.Event), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
