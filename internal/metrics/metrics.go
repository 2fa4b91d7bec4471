// Package metrics exposes the gateway's Prometheus collectors: account
// pool gauges and dispatcher retry/outcome counters, grounded on the
// teacher's own prometheus/client_golang wiring. These are operational
// counters only, not the billing/metering the spec's Non-goals exclude.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AccountsTotal reports the pool's account count by health state.
	AccountsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "pool",
		Name:      "accounts_total",
		Help:      "Number of accounts in the pool by health state.",
	}, []string{"state"})

	// RequestsTotal counts dispatcher requests by terminal outcome.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "dispatcher",
		Name:      "requests_total",
		Help:      "Dispatcher requests by terminal outcome.",
	}, []string{"outcome"})

	// RetriesTotal counts the number of account-rotation retries the
	// dispatcher performed across all requests.
	RetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "dispatcher",
		Name:      "retries_total",
		Help:      "Total retry attempts across accounts.",
	})

	// UpstreamLatencySeconds observes the upstream call duration.
	UpstreamLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "dispatcher",
		Name:      "upstream_latency_seconds",
		Help:      "Upstream call latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Register registers every collector with reg. Call it once per
// registry: MustRegister panics if a collector is already registered
// there.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(AccountsTotal, RequestsTotal, RetriesTotal, UpstreamLatencySeconds)
}
