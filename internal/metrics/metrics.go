// Package metrics provides Prometheus observability metrics for the queue
// engine and HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the service.
var Registry = prometheus.NewRegistry()

// factory registers metrics to our custom Registry directly.
var factory = promauto.With(Registry)

// PrioritizationRuns counts batch prioritization runs by scoring strategy.
var PrioritizationRuns = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "shopqueue",
	Name:      "prioritization_runs_total",
	Help:      "Batch prioritization runs by scoring strategy",
}, []string{"strategy"})

// PrioritizationMisses counts requested queue ids absent from the waiting
// pool. A growing value points at stale queue id lists upstream.
var PrioritizationMisses = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "shopqueue",
	Name:      "prioritization_misses_total",
	Help:      "Requested queue ids not found in the waiting pool",
})

// PriorityWriteFailures counts per-queue priority writes that were logged
// and skipped during a batch.
var PriorityWriteFailures = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "shopqueue",
	Name:      "priority_write_failures_total",
	Help:      "Queue priority writes that failed and were skipped",
})

// Assignments counts successful auto-assignments by strategy.
var Assignments = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "shopqueue",
	Name:      "assignments_total",
	Help:      "Successful auto-assignments by strategy",
}, []string{"strategy"})

// AssignmentFailures counts failed auto-assignments by failure kind.
var AssignmentFailures = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "shopqueue",
	Name:      "assignment_failures_total",
	Help:      "Failed auto-assignments by failure kind",
}, []string{"kind"})

// QueuesJoined counts queue entries created through the join endpoint.
var QueuesJoined = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "shopqueue",
	Name:      "queues_joined_total",
	Help:      "Queue entries created by customers",
})
