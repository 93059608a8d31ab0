package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementBootstrap("READY_GUEST")
	m.IncrementBootstrap("READY_GUEST")
	m.IncrementEvent("SIGNED_IN")
	m.IncrementReset("profile_missing")
	m.IncrementStaleRoleDiscarded()
	m.IncrementTokenRefresh("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BootstrapOutcomes.WithLabelValues("READY_GUEST")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsProcessed.WithLabelValues("SIGNED_IN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resets.WithLabelValues("profile_missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleRolesDiscarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues("ok")))
}

func TestMetrics_RoleLookupHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRoleLookup(time.Now().Add(-10 * time.Millisecond))

	assert.Equal(t, 1, testutil.CollectAndCount(m.RoleLookupDuration))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
