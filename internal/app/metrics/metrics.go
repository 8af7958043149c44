// Package metrics exposes Prometheus collectors for the wallet core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	reconcilePasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Total number of reconciliation passes started.",
		},
	)

	balanceQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "reconcile",
			Name:      "queries_total",
			Help:      "Total number of per-address balance queries.",
		},
		[]string{"source", "outcome"},
	)

	balanceMutations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "reconcile",
			Name:      "mutations_total",
			Help:      "Total number of detected balance mutations.",
		},
	)

	guardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "navigation",
			Name:      "decisions_total",
			Help:      "Total number of navigation guard decisions.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(reconcilePasses, balanceQueries, balanceMutations, guardDecisions)
}

// ObserveReconcilePass counts a started reconciliation pass.
func ObserveReconcilePass() {
	reconcilePasses.Inc()
}

// ObserveQuery counts one per-address balance query outcome.
func ObserveQuery(source string, ok bool) {
	outcome := "error"
	if ok {
		outcome = "success"
	}
	balanceQueries.WithLabelValues(source, outcome).Inc()
}

// ObserveMutation counts a detected balance mutation.
func ObserveMutation() {
	balanceMutations.Inc()
}

// ObserveDecision counts a navigation guard decision by kind.
func ObserveDecision(kind string) {
	guardDecisions.WithLabelValues(kind).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
