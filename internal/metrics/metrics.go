package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bakeshop"

// APIMetrics covers the gateway: HTTP traffic plus the write-path
// counters. PublishFailures is the operational signal for orders left
// in created with no job (the publish failure is swallowed on the
// request path).
type APIMetrics struct {
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	OrdersSubmitted prometheus.Counter
	PublishFailures prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

func NewAPIMetrics(reg prometheus.Registerer) *APIMetrics {
	m := &APIMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "orders_submitted_total",
			Help:      "Orders durably written by the gateway.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "order_publish_failures_total",
			Help:      "Order jobs that failed to publish after the order committed.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "catalog_cache_hits_total",
			Help:      "Catalog reads served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "catalog_cache_misses_total",
			Help:      "Catalog reads that fell through to the store.",
		}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.OrdersSubmitted, m.PublishFailures, m.CacheHits, m.CacheMisses)
	return m
}

// WorkerMetrics covers the fulfillment consumer loop.
type WorkerMetrics struct {
	JobsCompleted   prometheus.Counter
	JobsSkipped     prometheus.Counter
	JobsRetried     prometheus.Counter
	JobsDropped     prometheus.Counter
	JobsDeadLetters prometheus.Counter
}

func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_completed_total",
			Help:      "Jobs whose order reached completed.",
		}),
		JobsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_skipped_total",
			Help:      "Redelivered jobs skipped because the order was already completed.",
		}),
		JobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_retried_total",
			Help:      "Processing attempts that failed and were retried.",
		}),
		JobsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_dropped_total",
			Help:      "Malformed or unresolvable jobs acknowledged without processing.",
		}),
		JobsDeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_dead_lettered_total",
			Help:      "Jobs routed to the dead-letter topic after exhausting attempts.",
		}),
	}
	reg.MustRegister(m.JobsCompleted, m.JobsSkipped, m.JobsRetried, m.JobsDropped, m.JobsDeadLetters)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
