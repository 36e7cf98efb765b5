package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	engineInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "librebrowser",
			Subsystem: "engine",
			Name:      "installs_total",
			Help:      "Engine install attempts by result.",
		}, []string{"result"},
	)
	engineInstallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "librebrowser",
			Subsystem: "engine",
			Name:      "install_duration_seconds",
			Help:      "Time spent downloading and extracting an engine.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	profileLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "librebrowser",
			Subsystem: "profile",
			Name:      "launches_total",
			Help:      "Profile launches by launch strategy.",
		}, []string{"strategy"},
	)
	profileEarlyExits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "librebrowser",
			Subsystem: "profile",
			Name:      "early_exits_total",
			Help:      "Engine processes that exited before the crash threshold.",
		},
	)
	profileCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "librebrowser",
			Subsystem: "profile",
			Name:      "closes_total",
			Help:      "Profile closes by the path that handled them.",
		}, []string{"path"},
	)
	profileTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "librebrowser",
			Subsystem: "profile",
			Name:      "tracked",
			Help:      "Engine processes currently owned by this host.",
		},
	)
	profileMemory = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "librebrowser",
			Subsystem: "profile",
			Name:      "memory_rss_bytes",
			Help:      "Resident memory of a running profile's engine process.",
		}, []string{"label"},
	)
)

// Install results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{engineInstalls, engineInstallDuration, profileLaunches, profileEarlyExits, profileCloses, profileTracked, profileMemory}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// The helpers below no-op until Register has succeeded.

func IncInstall(result string) {
	if regOK.Load() {
		engineInstalls.WithLabelValues(result).Inc()
	}
}
func ObserveInstallDuration(seconds float64) {
	if regOK.Load() {
		engineInstallDuration.Observe(seconds)
	}
}
func IncLaunch(strategy string) {
	if regOK.Load() {
		profileLaunches.WithLabelValues(strategy).Inc()
	}
}
func IncEarlyExit() {
	if regOK.Load() {
		profileEarlyExits.Inc()
	}
}
func IncClose(path string) {
	if regOK.Load() {
		profileCloses.WithLabelValues(path).Inc()
	}
}
func SetTracked(n int) {
	if regOK.Load() {
		profileTracked.Set(float64(n))
	}
}
func SetProfileMemory(label string, rss uint64) {
	if regOK.Load() {
		profileMemory.WithLabelValues(label).Set(float64(rss))
	}
}
func ClearProfileMemory(label string) {
	if regOK.Load() {
		profileMemory.DeleteLabelValues(label)
	}
}
