// Package metrics exposes Prometheus counters for the examination core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SeatsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coe",
		Name:      "seats_allocated_total",
		Help:      "Seats assigned by the allocator.",
	})
	AllocationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coe",
		Name:      "allocations_rejected_total",
		Help:      "Allocations refused for insufficient room capacity.",
	})
	BundlesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coe",
		Name:      "bundles_generated_total",
		Help:      "Anonymized evaluator bundles produced.",
	})
	EntriesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coe",
		Name:      "see_entries_decoded_total",
		Help:      "SEE entries restored from filled bundles.",
	})
	RecordsGraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coe",
		Name:      "records_graded_total",
		Help:      "Result records graded, by path.",
	}, []string{"path"}) // bulk | moderation
	Warnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coe",
		Name:      "run_warnings_total",
		Help:      "Recoverable conditions reported by core runs, by kind.",
	}, []string{"kind"})
)
