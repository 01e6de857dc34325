// Package metrics holds the process's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every najdeno collector is registered with.
var Registry = prometheus.NewRegistry()

var (
	DepositsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "najdeno_deposits_created_total",
		Help: "Deposits created.",
	})
	SerialConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "najdeno_serial_conflicts_total",
		Help: "Deposit serial allocation attempts lost to a concurrent writer.",
	})
	BulkOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "najdeno_bulk_operations_total",
		Help: "Bulk custody operations by operation and result (ok, rejected, error).",
	}, []string{"operation", "result"})
	ItemsTransitioned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "najdeno_items_transitioned_total",
		Help: "Items moved to a new status, by operation.",
	}, []string{"operation"})
	DisposalMarked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "najdeno_disposal_marked_total",
		Help: "Items marked ready to dispose by the retention scanner.",
	})
	DisposalCycleFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "najdeno_disposal_cycle_failures_total",
		Help: "Retention scanner cycles that failed.",
	})
	DocumentFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "najdeno_document_failures_total",
		Help: "Document renders that failed and were skipped.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		DepositsCreated,
		SerialConflicts,
		BulkOperations,
		ItemsTransitioned,
		DisposalMarked,
		DisposalCycleFailures,
		DocumentFailures,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
