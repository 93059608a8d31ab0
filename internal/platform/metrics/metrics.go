package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the session controller and the
// identity provider client.
type Metrics struct {
	BootstrapOutcomes   *prometheus.CounterVec
	EventsProcessed     *prometheus.CounterVec
	Resets              *prometheus.CounterVec
	StaleRolesDiscarded prometheus.Counter
	RoleLookupDuration  prometheus.Histogram
	TokenRefreshes      *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Pass prometheus.NewRegistry()
// in tests so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BootstrapOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propmaster_session_bootstrap_total",
			Help: "Bootstrap results by resulting phase or failure",
		}, []string{"outcome"}),
		EventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propmaster_session_events_total",
			Help: "Identity provider events processed by the synchronizer",
		}, []string{"kind"}),
		Resets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propmaster_session_resets_total",
			Help: "Corrective and user initiated resets by reason",
		}, []string{"reason"}),
		StaleRolesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "propmaster_session_stale_roles_discarded_total",
			Help: "Role lookup results dropped because a newer event superseded them",
		}),
		RoleLookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "propmaster_role_lookup_duration_seconds",
			Help:    "Duration of role lookups against the profiles store",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		TokenRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propmaster_token_refresh_total",
			Help: "Provider token refresh attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementBootstrap(outcome string) {
	m.BootstrapOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementEvent(kind string) {
	m.EventsProcessed.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementReset(reason string) {
	m.Resets.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementStaleRoleDiscarded() {
	m.StaleRolesDiscarded.Inc()
}

// ObserveRoleLookup records the duration of a role lookup.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRoleLookup(start time.Time) {
	m.RoleLookupDuration.Observe(time.Since(start).Seconds())
}

// IncrementTokenRefresh counts refresh results: "ok", "rejected", "unavailable".
func (m *Metrics) IncrementTokenRefresh(result string) {
	m.TokenRefreshes.WithLabelValues(result).Inc()
}
