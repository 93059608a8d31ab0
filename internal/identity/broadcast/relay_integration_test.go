//go:build integration

package broadcast

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"propmaster/internal/identity"
	"propmaster/internal/identity/fake"
	"propmaster/internal/identity/store/persisted"
	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
	"propmaster/pkg/testutil/containers"
)

func TestRelay_CrossInstance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc := containers.NewRedisContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := fake.New("k", fake.WithBcryptCost(bcrypt.MinCost))
	store := persisted.NewRedisStore(rc.Client)

	clientA := identity.New(server, store, identity.WithLogger(logger))
	clientB := identity.New(server, store, identity.WithLogger(logger))

	relayA := NewRelay(rc.Client, clientA, WithLogger(logger))
	relayB := NewRelay(rc.Client, clientB, WithLogger(logger))
	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()

	received := make(chan models.Event, 4)
	clientB.OnSessionEvent(func(ev models.Event) { received <- ev })

	// Give both subscriptions time to establish
	time.Sleep(200 * time.Millisecond)

	sess, err := clientA.SignUp(ctx, "relay@example.test", "secret-pw",
		models.Metadata{DisplayName: "Relay", Role: domain.RoleTenant})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, models.EventSignedIn, ev.Kind)
		assert.Equal(t, relayA.InstanceID(), ev.Origin)
		assert.Equal(t, sess.Subject(), ev.Session.Subject())
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
	assert.Equal(t, sess.Subject(), clientB.Current().Subject())

	select {
	case ev := <-received:
		t.Fatalf("event echoed back: %s from %s", ev.Kind, ev.Origin)
	case <-time.After(300 * time.Millisecond):
	}
}
