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

	spawnAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cockpit",
			Subsystem: "launcher",
			Name:      "spawn_attempts_total",
			Help:      "Number of attempts to spawn the server process.",
		}, []string{"name"},
	)
	spawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cockpit",
			Subsystem: "launcher",
			Name:      "spawn_failures_total",
			Help:      "Number of failed spawn attempts.",
		}, []string{"name"},
	)
	startsExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cockpit",
			Subsystem: "launcher",
			Name:      "start_exhausted_total",
			Help:      "Number of launches that gave up after the retry budget.",
		}, []string{"name"},
	)
	orphanReclaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cockpit",
			Subsystem: "launcher",
			Name:      "orphan_reclaims_total",
			Help:      "Number of leftover server processes terminated before spawning.",
		}, []string{"name"},
	)
	readinessWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cockpit",
			Subsystem: "probe",
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for the server port, by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}, []string{"result"},
	)
	terminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cockpit",
			Subsystem: "terminator",
			Name:      "terminations_total",
			Help:      "Number of terminations issued, by strategy and outcome.",
		}, []string{"strategy", "result"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cockpit",
			Subsystem: "lifecycle",
			Name:      "state_transitions_total",
			Help:      "Number of lifecycle state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cockpit",
			Subsystem: "lifecycle",
			Name:      "current_state",
			Help:      "Current lifecycle state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	hostEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cockpit",
			Subsystem: "lifecycle",
			Name:      "host_events_total",
			Help:      "Window and tray events received from the host.",
		}, []string{"event"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		spawnAttempts, spawnFailures, startsExhausted, orphanReclaims,
		readinessWait, terminations, stateTransitions, currentState, hostEvents,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncSpawnAttempt(name string) {
	if regOK.Load() {
		spawnAttempts.WithLabelValues(name).Inc()
	}
}

func IncSpawnFailure(name string) {
	if regOK.Load() {
		spawnFailures.WithLabelValues(name).Inc()
	}
}

func IncStartExhausted(name string) {
	if regOK.Load() {
		startsExhausted.WithLabelValues(name).Inc()
	}
}

func IncOrphanReclaim(name string) {
	if regOK.Load() {
		orphanReclaims.WithLabelValues(name).Inc()
	}
}

func ObserveReadinessWait(ready bool, seconds float64) {
	if regOK.Load() {
		result := "ready"
		if !ready {
			result = "timeout"
		}
		readinessWait.WithLabelValues(result).Observe(seconds)
	}
}

func IncTermination(strategy string, err error) {
	if regOK.Load() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		terminations.WithLabelValues(strategy, result).Inc()
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
		currentState.WithLabelValues(from).Set(0)
		currentState.WithLabelValues(to).Set(1)
	}
}

func IncHostEvent(event string) {
	if regOK.Load() {
		hostEvents.WithLabelValues(event).Inc()
	}
}
