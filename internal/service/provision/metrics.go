package provision

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var stageBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600}

// Metrics tracks pipeline outcomes and stage latencies.
type Metrics struct {
	provisionResults *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	lifecycleOps     *prometheus.CounterVec
}

// NewMetrics registers pipeline collectors on the given registerer. A nil
// registerer falls back to the default prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		provisionResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "deployer",
			Name:      "provision_results_total",
			Help:      "Number of provisioning pipeline runs by outcome",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "openclaw",
			Subsystem: "deployer",
			Name:      "stage_duration_seconds",
			Help:      "Latency distribution of provisioning stages",
			Buckets:   stageBuckets,
		}, []string{"stage"}),
		lifecycleOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openclaw",
			Subsystem: "deployer",
			Name:      "lifecycle_operations_total",
			Help:      "Number of deployment lifecycle operations",
		}, []string{"operation"}),
	}
	for _, collector := range []prometheus.Collector{m.provisionResults, m.stageDuration, m.lifecycleOps} {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch existing := already.ExistingCollector.(type) {
				case *prometheus.CounterVec:
					if collector == m.provisionResults {
						m.provisionResults = existing
					} else {
						m.lifecycleOps = existing
					}
				case *prometheus.HistogramVec:
					m.stageDuration = existing
				}
			}
		}
	}
	return m
}

func (m *Metrics) recordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.provisionResults.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m *Metrics) observeStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.With(prometheus.Labels{"stage": stage}).Observe(duration.Seconds())
}

func (m *Metrics) recordLifecycle(operation string) {
	if m == nil {
		return
	}
	m.lifecycleOps.With(prometheus.Labels{"operation": operation}).Inc()
}
