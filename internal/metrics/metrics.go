// Package metrics defines the Prometheus collectors the admin HTTP
// surface exposes at /metrics (A4): dispatch latency, hot-reload
// outcomes, and per-module load failures.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchDuration observes how long one Dispatcher.Handle call took,
// labeled by which path served it.
var DispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "trinity",
		Subsystem: "dispatch",
		Name:      "duration_seconds",
		Help:      "Time to route and handle one inbound event.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"path"}, // "admin", "help", "module", "unhandled"
)

// ReloadTotal counts hot-reload attempts, labeled by outcome.
var ReloadTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trinity",
		Subsystem: "reload",
		Name:      "total",
		Help:      "Hot-reload attempts by outcome.",
	},
	[]string{"outcome"}, // "success", "failure"
)

// ModuleLoadErrors counts modules that failed to compile, instantiate,
// or initialize, summed over every registry build since the process
// started, labeled by module name.
var ModuleLoadErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trinity",
		Subsystem: "module",
		Name:      "load_errors_total",
		Help:      "Module load failures by module name.",
	},
	[]string{"module"},
)

// ModulesLoaded reports how many modules are currently live.
var ModulesLoaded = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "trinity",
		Subsystem: "module",
		Name:      "loaded",
		Help:      "Number of modules currently loaded and serving dispatch.",
	},
)

func init() {
	prometheus.MustRegister(DispatchDuration, ReloadTotal, ModuleLoadErrors, ModulesLoaded)
}

// ObserveDispatch records how long a dispatch of the given path took.
func ObserveDispatch(path string, start time.Time) {
	DispatchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}
