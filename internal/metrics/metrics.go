// Package metrics holds the Prometheus collectors shared by the saldo binaries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultFallback = "fallback"
	ResultSkipped  = "skipped"
)

var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "ledger",
	Name:      "mutations_total",
	Help:      "Total ledger mutations applied, by action.",
}, []string{"action"})

var LedgerVersion = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "saldo",
	Subsystem: "ledger",
	Name:      "version",
	Help:      "Version of the in-memory ledger state.",
})

var BudgetsCorrected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "ledger",
	Name:      "budgets_corrected_total",
	Help:      "Budgets whose cached spent value changed during a full recalculation.",
})

var SnapshotSaves = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "storage",
	Name:      "snapshot_saves_total",
	Help:      "Snapshot saves by result.",
}, []string{"result"})

var RateRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "rates",
	Name:      "refreshes_total",
	Help:      "Rate table refreshes by result.",
}, []string{"result"})

var RateTableAge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "saldo",
	Subsystem: "rates",
	Name:      "table_timestamp_seconds",
	Help:      "Unix time at which the cached rate table was fetched.",
})

var Exports = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "export",
	Name:      "transactions_total",
	Help:      "Transactions mirrored to the export backend, by result.",
}, []string{"result"})

var RemindersPublished = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "recurring",
	Name:      "reminders_published_total",
	Help:      "Recurring payment reminders published.",
})

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "amqp",
	Name:      "events_published_total",
	Help:      "Ledger events published, by result.",
}, []string{"result"})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "saldo",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status.",
	Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"method", "route", "status"})

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

var RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "http",
	Name:      "rate_limit_hits_total",
	Help:      "Requests rejected by the rate limiter.",
})

var SuspiciousRequests = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "saldo",
	Subsystem: "http",
	Name:      "suspicious_requests_total",
	Help:      "Requests matching a known attack pattern.",
})
