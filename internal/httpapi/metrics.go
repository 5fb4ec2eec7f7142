package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry holds the Prometheus metrics this service exposes at
// /metrics.
type MetricsRegistry struct {
	DecisionLatency    *prometheus.HistogramVec
	RecommendationsTot *prometheus.CounterVec
	CollectorFetches   *prometheus.CounterVec
	CollectorErrors    *prometheus.CounterVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CircuitState       *prometheus.GaugeVec
	CatalogActiveEdges prometheus.Gauge
	DiscoveryRunTotal  prometheus.Counter
	BankrollBalance    prometheus.Gauge
}

// NewMetricsRegistry builds and registers every metric against the given
// registerer (pass prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests to avoid global-registry collisions).
func NewMetricsRegistry(reg prometheus.Registerer) *MetricsRegistry {
	m := &MetricsRegistry{
		DecisionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nfledge_decision_latency_seconds",
			Help:    "Time to produce a Recommendation (or decide to skip) for one game",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"outcome"}),

		RecommendationsTot: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nfledge_recommendations_total",
			Help: "Recommendations emitted, by tier",
		}, []string{"tier"}),

		CollectorFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nfledge_collector_fetches_total",
			Help: "Orchestrator fetches attempted, by collector and result",
		}, []string{"collector", "result"}),

		CollectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nfledge_collector_errors_total",
			Help: "Orchestrator fetch errors, by collector and error kind",
		}, []string{"collector", "kind"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nfledge_cache_hits_total",
			Help: "Orchestrator cache hits, by tier",
		}, []string{"tier"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nfledge_cache_misses_total",
			Help: "Orchestrator cache misses, by tier",
		}, []string{"tier"}),

		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nfledge_circuit_state",
			Help: "Per-collector circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"collector"}),

		CatalogActiveEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nfledge_catalog_active_edges",
			Help: "Current count of active Edges in the catalog",
		}),

		DiscoveryRunTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nfledge_discovery_runs_total",
			Help: "Completed Discoverer runs",
		}),

		BankrollBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nfledge_bankroll_balance",
			Help: "Current bankroll balance",
		}),
	}

	reg.MustRegister(
		m.DecisionLatency, m.RecommendationsTot, m.CollectorFetches, m.CollectorErrors,
		m.CacheHits, m.CacheMisses, m.CircuitState, m.CatalogActiveEdges,
		m.DiscoveryRunTotal, m.BankrollBalance,
	)
	return m
}

// Handler exposes the registry's metrics in the Prometheus exposition
// format. Caller supplies the same Gatherer that NewMetricsRegistry
// registered against (a *prometheus.Registry, or prometheus.DefaultGatherer
// for the global registry).
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// CircuitStateValue maps a breaker state name to the gauge's numeric
// encoding, one small integer per breaker state.
func CircuitStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
