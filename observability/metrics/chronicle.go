package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ChronicleMetrics tracks mutation traffic and tree growth across every
// deployed chronicle.
type ChronicleMetrics struct {
	mutations          *prometheus.CounterVec
	mutationsRejected  *prometheus.CounterVec
	aggregatorRejected prometheus.Counter
	liquidityLeafCount *prometheus.GaugeVec
	dataLeafCount      *prometheus.GaugeVec
	deployedChronicles prometheus.Gauge
}

var (
	chronicleOnce     sync.Once
	chronicleRegistry *ChronicleMetrics
)

// Chronicle returns the process-wide chronicle metrics, registering the
// collectors on first use.
func Chronicle() *ChronicleMetrics {
	chronicleOnce.Do(func() {
		chronicleRegistry = &ChronicleMetrics{
			mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "chronicle_mutations_total",
				Help: "Count of committed mutations by action kind.",
			}, []string{"action"}),
			mutationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "chronicle_mutations_rejected_total",
				Help: "Count of rejected mutations by reason.",
			}, []string{"reason"}),
			aggregatorRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "chronicle_aggregator_rejections_total",
				Help: "Count of commitments the top-level aggregator refused.",
			}),
			liquidityLeafCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "chronicle_liquidity_leaves",
				Help: "Accounts committed into the liquidity tree per chronicle.",
			}, []string{"chronicle"}),
			dataLeafCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "chronicle_data_leaves",
				Help: "Keys committed into the data tree per chronicle.",
			}, []string{"chronicle"}),
			deployedChronicles: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "chronicle_deployed",
				Help: "Number of chronicles deployed by this factory.",
			}),
		}
		prometheus.MustRegister(
			chronicleRegistry.mutations,
			chronicleRegistry.mutationsRejected,
			chronicleRegistry.aggregatorRejected,
			chronicleRegistry.liquidityLeafCount,
			chronicleRegistry.dataLeafCount,
			chronicleRegistry.deployedChronicles,
		)
	})
	return chronicleRegistry
}

// ObserveMutation records one committed mutation for an action kind.
func (m *ChronicleMetrics) ObserveMutation(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.mutations.WithLabelValues(action).Inc()
}

// ObserveRejection records a rejected mutation by reason.
func (m *ChronicleMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.mutationsRejected.WithLabelValues(reason).Inc()
}

// ObserveAggregatorRejection records a refused top-level commitment.
func (m *ChronicleMetrics) ObserveAggregatorRejection() {
	if m == nil {
		return
	}
	m.aggregatorRejected.Inc()
}

// SetLeafCounts updates the tree-size gauges for one chronicle.
func (m *ChronicleMetrics) SetLeafCounts(chronicleAddr string, liquidity, data uint64) {
	if m == nil {
		return
	}
	m.liquidityLeafCount.WithLabelValues(chronicleAddr).Set(float64(liquidity))
	m.dataLeafCount.WithLabelValues(chronicleAddr).Set(float64(data))
}

// SetDeployed updates the deployed-chronicle gauge.
func (m *ChronicleMetrics) SetDeployed(count int) {
	if m == nil {
		return
	}
	m.deployedChronicles.Set(float64(count))
}
