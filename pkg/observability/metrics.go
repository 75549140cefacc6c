package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	StageEntries *prometheus.CounterVec
	Crises       prometheus.Counter
	Assessments  *prometheus.CounterVec
	Dispatches   *prometheus.CounterVec
	DispatchTime *prometheus.HistogramVec
	Attempts     prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry that also exposes Go runtime metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StageEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deprebuddy_stage_entries_total",
				Help: "Turns resolved into each dialogue stage",
			},
			[]string{"stage"},
		),
		Crises: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deprebuddy_crisis_total",
			Help: "Sessions escalated to crisis handling",
		}),
		Assessments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deprebuddy_assessments_completed_total",
				Help: "Completed assessments by severity category",
			},
			[]string{"category"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deprebuddy_dispatch_total",
				Help: "Agent dispatches by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		DispatchTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deprebuddy_dispatch_duration_seconds",
				Help:    "Duration of agent dispatches, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		Attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deprebuddy_dispatch_attempts",
			Help:    "Upstream attempts per dispatch",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
	}

	m.registry.MustRegister(
		m.StageEntries, m.Crises, m.Assessments,
		m.Dispatches, m.DispatchTime, m.Attempts,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that log each event and record it in m.
// A nil m only logs.
func (m *Metrics) Hooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			logger.Debug("stage_enter",
				"session_id", e.SessionID,
				"from", e.From.String(),
				"to", e.To.String(),
			)
			if m != nil {
				m.StageEntries.WithLabelValues(e.To.String()).Inc()
			}
		},
		OnCrisis: func(ctx context.Context, e *domain.StageEvent) {
			logger.Warn("crisis_detected", "session_id", e.SessionID, "from", e.From.String())
			if m != nil {
				m.Crises.Inc()
			}
		},
		OnAssessmentComplete: func(ctx context.Context, e *domain.AssessmentEvent) {
			logger.Info("assessment_complete",
				"session_id", e.SessionID,
				"total_score", e.TotalScore,
				"category", string(e.Category),
			)
			if m != nil {
				m.Assessments.WithLabelValues(string(e.Category)).Inc()
			}
		},
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			logger.Debug("dispatch",
				"session_id", e.SessionID,
				"stage", e.Stage.String(),
				"attempts", e.Attempts,
				"duration", e.Duration,
				"outcome", outcome,
			)
			if m != nil {
				m.Dispatches.WithLabelValues(e.Stage.String(), outcome).Inc()
				m.DispatchTime.WithLabelValues(e.Stage.String()).Observe(e.Duration.Seconds())
				m.Attempts.Observe(float64(e.Attempts))
			}
		},
	}
}
