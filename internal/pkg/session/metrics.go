// internal/pkg/session/metrics.go
package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// errMiss marks an operation that completed but found no session.
var errMiss = errors.New("session not found")

type Metrics struct {
	operations     *prometheus.CounterVec
	malformed      prometheus.Counter
	reconciled     prometheus.Counter
	cleaned        prometheus.Counter
	activeSessions prometheus.Gauge
}

// NewMetrics creates the store collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_store_operations_total",
				Help: "Session store operations by outcome",
			},
			[]string{"operation", "result"},
		),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "session_store_malformed_records_total",
			Help: "Stored session records that could not be decoded",
		}),
		reconciled: factory.NewCounter(prometheus.CounterOpts{
			Name: "session_store_index_entries_pruned_total",
			Help: "Stale per-user index entries removed by cleanup",
		}),
		cleaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "session_store_cleaned_sessions_total",
			Help: "Sessions destroyed by the expired-session sweep",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "active_sessions_total",
			Help: "Live sessions as of the last count",
		}),
	}
}

func (m *Metrics) observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, errMiss):
		result = "miss"
	case err != nil:
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}
