// Package metrics exposes orchestrator observability as Prometheus
// collectors, wired in through domain.LifecycleHooks.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/serviceops/conveyor/pkg/domain"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	transitionsTotal *prometheus.CounterVec
	handlerDuration  *prometheus.HistogramVec
}

// New creates and registers the collectors on the given registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conveyor_transitions_total",
				Help: "Transition attempts by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "conveyor_handler_duration_seconds",
				Help: "Duration of domain handler executions",
			},
			[]string{"stage", "action"},
		),
	}

	for _, c := range []prometheus.Collector{m.transitionsTotal, m.handlerDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransitionCommitted: func(ctx context.Context, e *domain.TransitionEvent) {
			m.transitionsTotal.WithLabelValues(string(e.Action), string(e.Outcome)).Inc()
		},
		OnTransitionRejected: func(ctx context.Context, e *domain.TransitionEvent) {
			m.transitionsTotal.WithLabelValues(string(e.Action), string(e.Outcome)).Inc()
		},
		OnHandlerReturn: func(ctx context.Context, e *domain.HandlerEvent) {
			m.handlerDuration.WithLabelValues(string(e.Stage), string(e.Action)).Observe(e.Duration.Seconds())
		},
	}
}

// RegisterAdvisoryDropped exposes a drop counter (e.g. advisory.Notifier's)
// as a gauge function.
func RegisterAdvisoryDropped(reg prometheus.Registerer, dropped func() uint64) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "conveyor_advisory_dropped_total",
			Help: "Advisory notifications dropped under backpressure",
		},
		func() float64 { return float64(dropped()) },
	))
}
