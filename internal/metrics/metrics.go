// Package metrics exposes the engine's Prometheus collectors and adapts
// them onto the runtime's lifecycle hooks.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dialflow/dialflow/pkg/flow"
)

// Registry holds every collector the engine exports, backed by its own
// Prometheus registry so embedding hosts keep control of the default one.
type Registry struct {
	ActiveSessions   prometheus.Gauge
	SessionsTotal    *prometheus.CounterVec
	SessionsRejected *prometheus.CounterVec

	NodeExecutions   *prometheus.CounterVec
	Judgments        *prometheus.CounterVec
	JudgmentRetries  prometheus.Counter
	Interruptions    prometheus.Counter
	CapabilityErrors *prometheus.CounterVec
	CallTurns        prometheus.Histogram

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialflow",
			Name:      "active_sessions",
			Help:      "Live call sessions currently executing a graph.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialflow",
			Name:      "sessions_total",
			Help:      "Sessions ended, by end reason.",
		}, []string{"reason"}),
		SessionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialflow",
			Name:      "sessions_rejected_total",
			Help:      "Call starts refused, by cause (duplicate, capacity).",
		}, []string{"cause"}),
		NodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialflow",
			Name:      "node_executions_total",
			Help:      "Nodes entered during call execution, by node type.",
		}, []string{"type"}),
		Judgments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialflow",
			Name:      "judgments_total",
			Help:      "Transition condition judgments, by outcome.",
		}, []string{"outcome"}),
		JudgmentRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dialflow",
			Name:      "judgment_retries_total",
			Help:      "Judgments that needed the single retry.",
		}),
		Interruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dialflow",
			Name:      "interruptions_total",
			Help:      "Playbacks cancelled by a matched interruption phrase.",
		}),
		CapabilityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialflow",
			Name:      "capability_errors_total",
			Help:      "Failed external capability calls, by capability.",
		}, []string{"capability"}),
		CallTurns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dialflow",
			Name:      "call_turns",
			Help:      "Turns taken per completed call.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		registry: reg,
	}

	reg.MustRegister(
		r.ActiveSessions,
		r.SessionsTotal,
		r.SessionsRejected,
		r.NodeExecutions,
		r.Judgments,
		r.JudgmentRetries,
		r.Interruptions,
		r.CapabilityErrors,
		r.CallTurns,
	)
	return r
}

// Prometheus returns the underlying registry for /metrics handlers.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// RecordRejection counts a refused call start.
func (r *Registry) RecordRejection(cause string) {
	r.SessionsRejected.WithLabelValues(cause).Inc()
}

// Hooks adapts the registry onto lifecycle hooks. Chain the result with any
// caller-supplied hooks before handing it to the runtime.
func (r *Registry) Hooks() flow.LifecycleHooks {
	return flow.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, ev *flow.NodeEvent) {
			r.NodeExecutions.WithLabelValues(string(ev.NodeType)).Inc()
		},
		OnJudge: func(_ context.Context, ev *flow.JudgeEvent) {
			switch {
			case ev.Err != nil:
				r.Judgments.WithLabelValues("error").Inc()
			case ev.Satisfied:
				r.Judgments.WithLabelValues("satisfied").Inc()
			default:
				r.Judgments.WithLabelValues("unsatisfied").Inc()
			}
			if ev.Retried {
				r.JudgmentRetries.Inc()
			}
		},
		OnInterrupt: func(_ context.Context, _ *flow.InterruptEvent) {
			r.Interruptions.Inc()
		},
		OnCapabilityError: func(_ context.Context, ev *flow.CapabilityEvent) {
			r.CapabilityErrors.WithLabelValues(ev.Capability).Inc()
		},
		OnSessionEnd: func(_ context.Context, ev *flow.SessionEndEvent) {
			r.SessionsTotal.WithLabelValues(string(ev.Reason)).Inc()
			r.CallTurns.Observe(float64(ev.Turns))
		},
	}
}
