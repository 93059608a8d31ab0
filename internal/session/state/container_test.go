package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propmaster/internal/session/models"
	"propmaster/pkg/domain"
)

func TestContainer_CommitAndSnapshot(t *testing.T) {
	c := New()
	assert.Equal(t, models.PhaseUninitialized, c.Snapshot().Phase())

	sess := &models.Session{User: models.User{ID: "u1"}}
	got := c.Commit(func(s *models.State) {
		s.Session = sess
		s.Role = domain.RoleLandlord
		s.Ready = true
	})

	assert.Equal(t, uint64(1), got.Version)
	assert.Equal(t, got, c.Snapshot())
	assert.Equal(t, models.PhaseReadyWithRole, c.Snapshot().Phase())
}

func TestContainer_ReadyNeverReverts(t *testing.T) {
	c := New()
	c.Commit(func(s *models.State) { s.Ready = true })
	c.Commit(func(s *models.State) { s.Ready = false })

	assert.True(t, c.Snapshot().Ready)
}

func TestContainer_SnapshotIsACopy(t *testing.T) {
	c := New()
	c.Commit(func(s *models.State) { s.Role = domain.RoleTenant })

	snap := c.Snapshot()
	snap.Role = domain.RoleCompany

	assert.Equal(t, domain.RoleTenant, c.Snapshot().Role)
}

func TestContainer_Watch(t *testing.T) {
	c := New()

	var mu sync.Mutex
	var seen []uint64
	unsubscribe := c.Watch(func(s models.State) {
		mu.Lock()
		seen = append(seen, s.Version)
		mu.Unlock()
	})

	c.Commit(func(s *models.State) { s.Ready = true })
	c.Commit(func(s *models.State) { s.Role = domain.RoleTenant })
	unsubscribe()
	unsubscribe()
	c.Commit(func(s *models.State) { s.Role = "" })

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, []uint64{1, 2}, seen)
}

func TestContainer_WatchersRunInRegistrationOrder(t *testing.T) {
	c := New()

	var order []string
	watch := func(name string) func() {
		return c.Watch(func(models.State) { order = append(order, name) })
	}
	watch("a")
	unsubscribeB := watch("b")
	watch("c")
	watch("d")

	c.Commit(func(s *models.State) { s.Ready = true })
	unsubscribeB()
	watch("e")
	c.Commit(func(s *models.State) { s.Role = domain.RoleTenant })

	assert.Equal(t, []string{"a", "b", "c", "d", "a", "c", "d", "e"}, order)
}
