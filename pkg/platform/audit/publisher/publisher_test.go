package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propmaster/pkg/domain"
	audit "propmaster/pkg/platform/audit"
	"propmaster/pkg/platform/audit/store/memory"
	"propmaster/pkg/requestcontext"
)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject := domain.SubjectID("u1")
	fixed := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), fixed), "req-9")

	err := pub.Emit(ctx, audit.Event{SubjectID: subject, Action: string(audit.EventSessionReset)})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventSessionReset), events[0].Action)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "req-9", events[0].RequestID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	subject := domain.SubjectID("u1")
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{SubjectID: subject, Action: string(audit.EventRoleResolved)})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListBySubject(context.Background(), subject)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisher_EmitAfterCloseIsSynchronous(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{SubjectID: "u1", Action: "x"}))
	events, err := store.ListBySubject(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublisher_Sinks(t *testing.T) {
	t.Run("sink receives persisted events", func(t *testing.T) {
		sink := &recordingSink{}
		pub := NewPublisher(memory.NewInMemoryStore(), WithSink(sink))
		defer pub.Close()

		require.NoError(t, pub.Emit(context.Background(), audit.Event{SubjectID: "u1", Action: "x"}))
		assert.Equal(t, 1, sink.count())
	})

	t.Run("sink failure does not fail emit and opens breaker", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("broker down")}
		pub := NewPublisher(memory.NewInMemoryStore(), WithSink(sink))
		defer pub.Close()

		for range 6 {
			require.NoError(t, pub.Emit(context.Background(), audit.Event{SubjectID: "u1", Action: "x"}))
		}
		assert.True(t, pub.store.breaker.IsOpen())
	})
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	assert.False(t, cb.Allow())

	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
	assert.True(t, cb.Allow())
}
