// Package metrics exposes the vault's Prometheus collectors. The CLI
// serves them only when an operator opts in; library code records into
// them unconditionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "saves_total",
		Help:      "Number of successful database saves.",
	})

	SaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "save_failures_total",
		Help:      "Number of failed database saves.",
	})

	SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keywarden",
		Name:      "save_duration_seconds",
		Help:      "Time spent encoding and committing the database file.",
		Buckets:   prometheus.DefBuckets,
	})

	KdfDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keywarden",
		Name:      "kdf_duration_seconds",
		Help:      "Time spent in key derivation.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	UnlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "unlocks_total",
		Help:      "Number of successful database unlocks.",
	})

	UnlockFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "keywarden",
		Name:      "unlock_failures_total",
		Help:      "Number of failed unlock attempts.",
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
