package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unitconsole",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unitconsole",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	consoleRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unitconsole",
			Subsystem: "console",
			Name:      "requests_total",
			Help:      "Console execute and suggest requests by outcome.",
		},
		[]string{"op", "command", "outcome"},
	)
	consoleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unitconsole",
			Subsystem: "console",
			Name:      "request_duration_seconds",
			Help:      "Console request duration in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"op"},
	)
	unitsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unitconsole",
			Subsystem: "selector",
			Name:      "units_resolved_total",
			Help:      "Units matched by executed selectors.",
		},
		[]string{"command"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "unitconsole",
			Subsystem: "session",
			Name:      "active",
			Help:      "Open shell sessions.",
		},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unitconsole",
			Subsystem: "session",
			Name:      "total",
			Help:      "Shell sessions by close reason.",
		},
		[]string{"reason"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			consoleRequests, consoleDuration,
			unitsResolved,
			sessionsActive, sessionsTotal,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordConsoleRequest counts one execute or suggest call. command is empty
// when the line did not name a known command.
func RecordConsoleRequest(op, command, outcome string, duration time.Duration) {
	RegisterMetrics()
	if command == "" {
		command = "unknown"
	}
	consoleRequests.WithLabelValues(op, command, outcome).Inc()
	consoleDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func RecordUnitsResolved(command string, n int) {
	RegisterMetrics()
	unitsResolved.WithLabelValues(command).Add(float64(n))
}

func SessionOpened() {
	RegisterMetrics()
	sessionsActive.Inc()
}

func SessionClosed(reason string) {
	RegisterMetrics()
	sessionsActive.Dec()
	sessionsTotal.WithLabelValues(reason).Inc()
}
