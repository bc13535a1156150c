package observability

import (
	"context"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "serialmacro"

// Metrics holds the Prometheus collectors updated by executor hooks.
type Metrics struct {
	Runs       *prometheus.CounterVec
	Steps      *prometheus.CounterVec
	Commands   prometheus.Counter
	OutputWait *prometheus.HistogramVec
	Requests   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished macro runs by terminal state",
			},
			[]string{"result"},
		),
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of executed steps",
			},
			[]string{"kind", "result"},
		),
		Commands: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_sent_total",
				Help:      "Total number of commands written to the transport",
			},
		),
		OutputWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "output_wait_seconds",
				Help:      "Time spent waiting for expected output",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of user interaction requests",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Steps, m.Commands, m.OutputWait, m.Requests)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepResult: func(_ context.Context, e *domain.Event) {
			m.Steps.WithLabelValues(string(e.StepKind), string(e.Result)).Inc()
			if e.StepKind == domain.StepOutput {
				m.OutputWait.WithLabelValues(string(e.Result)).Observe(e.Elapsed.Seconds())
			}
		},
		OnCommandSent: func(context.Context, *domain.Event) {
			m.Commands.Inc()
		},
		OnRunFinished: func(_ context.Context, e *domain.Event) {
			m.Runs.WithLabelValues(runResult(e.Type)).Inc()
		},
		OnRequest: func(_ context.Context, r *domain.Request) {
			m.Requests.WithLabelValues(string(r.Kind)).Inc()
		},
	}
}

func runResult(t domain.EventType) string {
	switch t {
	case domain.EventMacroCompleted:
		return string(domain.RunCompleted)
	case domain.EventMacroCancelled:
		return string(domain.RunCancelled)
	default:
		return string(domain.RunFailed)
	}
}
