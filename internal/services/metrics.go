// Package services – resolution metrics
//
// Prometheus instrumentation for identity resolution outcomes. The single
// counter keeps label cardinality fixed: one series per outcome.
package services

import "github.com/prometheus/client_golang/prometheus"

// resolveOutcomes counts Resolve calls by outcome: created_primary,
// created_secondary, merged, or noop.
var resolveOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identify_resolutions_total",
		Help: "Total number of identity resolutions by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(resolveOutcomes)
}
