// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus metrics of the acquisition workflow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wneessen/whereami/internal/acquire"
	"github.com/wneessen/whereami/internal/failure"
)

const namespace = "whereami"

var phases = []acquire.Phase{acquire.Idle, acquire.Locating, acquire.Geocoding, acquire.Ready, acquire.Failed}

// Metrics implements acquire.Observer.
type Metrics struct {
	// labels: intent, result={accepted,busy,invalid_transition,invalid_coordinate,configuration_missing}
	Intents *prometheus.CounterVec
	// labels: phase
	Transitions *prometheus.CounterVec
	// labels: kind
	Failures *prometheus.CounterVec
	// labels: operation={locate,geocode}
	OperationDuration *prometheus.HistogramVec
	// 1 for the current phase, 0 for all others
	Phase *prometheus.GaugeVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "User intents dispatched into the acquisition state machine by outcome.",
		}, []string{"intent", "result"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions by target phase.",
		}, []string{"phase"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Acquisition failures by kind.",
		}, []string{"kind"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of location and geocoding operations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		Phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "Current phase of the acquisition state machine.",
		}, []string{"phase"}),
	}
}

func (m *Metrics) ObserveIntent(intent acquire.Intent, result string) {
	m.Intents.WithLabelValues(string(intent), result).Inc()
}

func (m *Metrics) ObserveTransition(phase acquire.Phase) {
	m.Transitions.WithLabelValues(phase.String()).Inc()
	for _, p := range phases {
		value := 0.0
		if p == phase {
			value = 1
		}
		m.Phase.WithLabelValues(p.String()).Set(value)
	}
}

func (m *Metrics) ObserveFailure(kind failure.Kind) {
	m.Failures.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}
